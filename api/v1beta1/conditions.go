/*

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package v1beta1

import (
	condition "github.com/openstack-k8s-operators/lib-common/modules/common/condition"
)

// OpenStackDeployment Condition Types used by API objects.
const (
	// CredentialsReadyCondition Status=True condition which indicates the admin credentials exist and rotation requests are applied
	CredentialsReadyCondition condition.Type = "CredentialsReady"

	// PrecacheReadyCondition Status=True condition which indicates the image precache daemonset holds all desired images
	PrecacheReadyCondition condition.Type = "PrecacheReady"

	// UpgradeReadyCondition Status=True condition which indicates no release upgrade is pending
	UpgradeReadyCondition condition.Type = "UpgradeReady"

	// ServicesReadyCondition Status=True condition which indicates all enabled services are applied and removed ones deleted
	ServicesReadyCondition condition.Type = "ServicesReady"
)

// Common Messages used by API objects.
const (
	//
	// CredentialsReady condition messages
	//
	// CredentialsReadyInitMessage
	CredentialsReadyInitMessage = "Credentials not checked"

	// CredentialsReadyMessage
	CredentialsReadyMessage = "Credentials ready"

	// CredentialsReadyErrorMessage
	CredentialsReadyErrorMessage = "Credentials error occured %s"

	//
	// PrecacheReady condition messages
	//
	// PrecacheReadyInitMessage
	PrecacheReadyInitMessage = "Image precache not started"

	// PrecacheReadyMessage
	PrecacheReadyMessage = "Image precache ready"

	// PrecacheReadyDisabledMessage
	PrecacheReadyDisabledMessage = "Image precache disabled"

	// PrecacheReadyErrorMessage
	PrecacheReadyErrorMessage = "Image precache error occured %s"

	//
	// UpgradeReady condition messages
	//
	// UpgradeReadyInitMessage
	UpgradeReadyInitMessage = "Upgrade not checked"

	// UpgradeReadyMessage
	UpgradeReadyMessage = "No upgrade pending"

	// UpgradeReadyRunningMessage
	UpgradeReadyRunningMessage = "Upgrade from %s to %s in progress"

	// UpgradeReadyErrorMessage
	UpgradeReadyErrorMessage = "Upgrade error occured %s"

	//
	// ServicesReady condition messages
	//
	// ServicesReadyInitMessage
	ServicesReadyInitMessage = "Services not applied"

	// ServicesReadyMessage
	ServicesReadyMessage = "Services applied"

	// ServicesReadyWaitingMessage
	ServicesReadyWaitingMessage = "Services waiting: %s"

	// ServicesReadyErrorMessage
	ServicesReadyErrorMessage = "Services error occured %s"
)
