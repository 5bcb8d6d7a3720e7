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

// Package cli implements the osctl command line tool.
//
// Rotate the admin credentials and wait until the new password is rolled out:
//
//	osctl credentials rotate --name osdpl --namespace openstack --group admin --wait
//
// Exit codes: 0 on success, 1 when the deployment does not exist or the
// command failed, 2 when waiting timed out.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v3"
	k8s_errors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	lcmv1 "github.com/openstack-k8s-operators/osdpl-operator/api/v1beta1"
	"github.com/openstack-k8s-operators/osdpl-operator/internal/wait"
)

const (
	// ExitFailure - generic failure, also used for a missing deployment
	ExitFailure = 1
	// ExitTimeout - the awaited state was not reached in time
	ExitTimeout = 2
)

// ClientFunc builds the kubernetes client on first use
type ClientFunc func() (client.Client, error)

// Options of the application
type Options struct {
	Version   string
	NewClient ClientFunc
	Writer    io.Writer
	// PollInterval of --wait, wait.DefaultInterval when zero
	PollInterval time.Duration
}

// NewApp returns the root command
func NewApp(opts Options) *cli.Command {
	return &cli.Command{
		Name:    "osctl",
		Usage:   "Operate OpenStack deployments",
		Version: opts.Version,
		Writer:  opts.Writer,
		// exit codes are handled by the caller
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Commands: []*cli.Command{
			credentialsCmd(opts),
		},
	}
}

func credentialsCmd(opts Options) *cli.Command {
	return &cli.Command{
		Name:  "credentials",
		Usage: "Manage generated service credentials",
		Commands: []*cli.Command{
			rotateCmd(opts),
		},
	}
}

func rotateCmd(opts Options) *cli.Command {
	return &cli.Command{
		Name:  "rotate",
		Usage: "Rotate the credentials of a group",
		Description: `Requests a new password for a credential group. The deployment
regenerates the password and re-applies every service using it.
With --wait the command blocks until the deployment is applied with the new
password and all components are healthy.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "name",
				Value:   "osh-dev",
				Usage:   "name of the OpenStackDeployment",
				Sources: cli.EnvVars("OSDPL_NAME"),
			},
			&cli.StringFlag{
				Name:    "namespace",
				Aliases: []string{"n"},
				Value:   "openstack",
				Usage:   "namespace of the OpenStackDeployment",
				Sources: cli.EnvVars("OSDPL_NAMESPACE"),
			},
			&cli.StringFlag{
				Name:  "group",
				Value: lcmv1.AdminCredentials,
				Usage: "credential group to rotate",
			},
			&cli.BoolFlag{
				Name:  "wait",
				Usage: "wait until the rotation is rolled out",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 30 * time.Minute,
				Usage: "maximum time to wait",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			c, err := opts.NewClient()
			if err != nil {
				return cli.Exit(fmt.Sprintf("failed to create client: %v", err), ExitFailure)
			}
			key := types.NamespacedName{Namespace: cmd.String("namespace"), Name: cmd.String("name")}
			group := cmd.String("group")

			id, err := RequestRotation(ctx, c, key, group)
			if k8s_errors.IsNotFound(err) {
				return cli.Exit(fmt.Sprintf("OpenStackDeployment %s not found", key), ExitFailure)
			}
			if err != nil {
				return cli.Exit(err.Error(), ExitFailure)
			}
			fmt.Fprintf(cmd.Root().Writer, "Requested rotation %d of %s credentials\n", id, group)

			if !cmd.Bool("wait") {
				return nil
			}
			poller := wait.New(opts.PollInterval, cmd.Duration("timeout"))
			err = WaitRotation(ctx, c, poller, key, group, id)
			if wait.IsTimeout(err) {
				return cli.Exit(err.Error(), ExitTimeout)
			}
			if err != nil {
				return cli.Exit(err.Error(), ExitFailure)
			}
			fmt.Fprintf(cmd.Root().Writer, "Rotation %d of %s credentials applied\n", id, group)
			return nil
		},
	}
}

// ExitCode of an error returned by the application
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return ExitFailure
}
