// Package project walks one or more credential contexts and applies the
// rule reconciler to each, strictly sequentially.
package project

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudseal/secallow/pkg/provider"
	"github.com/cloudseal/secallow/pkg/provider/awsec2"
	"github.com/cloudseal/secallow/pkg/provider/neutron"
	"github.com/cloudseal/secallow/pkg/provider/openstackcli"
	"github.com/cloudseal/secallow/pkg/reconciler"
	"github.com/rs/zerolog/log"
)

// Backends selectable via --provider.
const (
	BackendCLI     = "cli"
	BackendNeutron = "neutron"
	BackendAWS     = "aws"
)

// Options configures one full run across all credential contexts.
type Options struct {
	Backend      string
	OSCommand    string // backend binary for BackendCLI
	RCPath       string // empty, credential file, or directory of them
	PasswordFile string

	Group       string
	Target      string
	Ports       []int
	AllICMP     bool
	Output      io.Writer
	Description string
}

// clientFactory is swapped out in tests.
var clientFactory = newClient

func newClient(ctx context.Context, opts Options, creds Credentials) (provider.Client, error) {
	switch opts.Backend {
	case BackendCLI:
		return openstackcli.New(opts.OSCommand, creds.Environ()), nil
	case BackendNeutron:
		return neutron.New(ctx, neutron.Credentials{
			Username:    creds.Username,
			Password:    creds.Password,
			ProjectID:   creds.ProjectID,
			ProjectName: creds.ProjectName,
			AuthURL:     creds.AuthURL,
		})
	case BackendAWS:
		return awsec2.New()
	default:
		return nil, fmt.Errorf("unknown provider backend %q", opts.Backend)
	}
}

// Run reconciles the rule-set in every credential context and returns how
// many rule-sets were updated. Per-context precondition skips keep the run
// going; authentication failures, malformed credential files and
// delete/create failures abort it.
func Run(ctx context.Context, opts Options) (int, error) {
	var contexts []Context
	if opts.Backend == BackendAWS {
		// AWS credentials come from the SDK's own chain; OS_* contexts
		// do not apply.
		contexts = []Context{{Name: "aws"}}
	} else {
		var err error
		contexts, err = Contexts(opts.RCPath)
		if err != nil {
			return 0, err
		}

		password, err := ResolvePassword(opts.PasswordFile)
		if err != nil {
			return 0, err
		}
		for i := range contexts {
			if contexts[i].Credentials.Password == "" {
				contexts[i].Credentials.Password = password
			}
		}
	}

	updated := 0
	for _, c := range contexts {
		log.Debug().Msgf("Reconciling %s in context %s", opts.Group, c.Name)

		client, err := clientFactory(ctx, opts, c.Credentials)
		if err != nil {
			return updated, fmt.Errorf("context %s: %w", c.Name, err)
		}

		count, err := reconciler.Reconcile(ctx, client, reconciler.Input{
			Group:       opts.Group,
			Target:      opts.Target,
			Ports:       opts.Ports,
			AllICMP:     opts.AllICMP,
			Output:      opts.Output,
			Description: opts.Description,
		})
		if err != nil {
			return updated, fmt.Errorf("context %s: %w", c.Name, err)
		}
		updated += count
	}
	return updated, nil
}
