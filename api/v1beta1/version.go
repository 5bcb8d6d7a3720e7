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

// OpenStackVersion is an OpenStack release name. Releases are ordered.
type OpenStackVersion string

// Known OpenStack releases, oldest first.
const (
	OpenStackQueens   OpenStackVersion = "queens"
	OpenStackRocky    OpenStackVersion = "rocky"
	OpenStackStein    OpenStackVersion = "stein"
	OpenStackTrain    OpenStackVersion = "train"
	OpenStackUssuri   OpenStackVersion = "ussuri"
	OpenStackVictoria OpenStackVersion = "victoria"
	OpenStackWallaby  OpenStackVersion = "wallaby"
	OpenStackXena     OpenStackVersion = "xena"
	OpenStackYoga     OpenStackVersion = "yoga"
	OpenStackZed      OpenStackVersion = "zed"
	OpenStackAntelope OpenStackVersion = "antelope"
	OpenStackBobcat   OpenStackVersion = "bobcat"
	OpenStackCaracal  OpenStackVersion = "caracal"
	OpenStackMaster   OpenStackVersion = "master"
)

// OpenStackVersions lists all releases in upgrade order
var OpenStackVersions = []OpenStackVersion{
	OpenStackQueens,
	OpenStackRocky,
	OpenStackStein,
	OpenStackTrain,
	OpenStackUssuri,
	OpenStackVictoria,
	OpenStackWallaby,
	OpenStackXena,
	OpenStackYoga,
	OpenStackZed,
	OpenStackAntelope,
	OpenStackBobcat,
	OpenStackCaracal,
	OpenStackMaster,
}

// Index returns the position of the release in OpenStackVersions, or -1
// when the release is unknown.
func (v OpenStackVersion) Index() int {
	for i, known := range OpenStackVersions {
		if known == v {
			return i
		}
	}
	return -1
}

// IsValid - true if the release is a known one
func (v OpenStackVersion) IsValid() bool {
	return v.Index() >= 0
}

// Compare returns -1, 0 or 1 depending on whether v is older, equal or newer
// than other.
func (v OpenStackVersion) Compare(other OpenStackVersion) int {
	a, b := v.Index(), other.Index()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Next returns the release following v. The second value is false when v is
// the newest or an unknown release.
func (v OpenStackVersion) Next() (OpenStackVersion, bool) {
	i := v.Index()
	if i < 0 || i+1 >= len(OpenStackVersions) {
		return "", false
	}
	return OpenStackVersions[i+1], true
}
