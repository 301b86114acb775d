package command

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cloudseal/secallow/pkg/changelog"
	"github.com/cloudseal/secallow/pkg/config"
	"github.com/cloudseal/secallow/pkg/logger"
	"github.com/cloudseal/secallow/pkg/ports"
	"github.com/cloudseal/secallow/pkg/project"
	"github.com/cloudseal/secallow/pkg/resolver"
	"github.com/cloudseal/secallow/pkg/version"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const name = "secallow"

var (
	flagSecurityGroup string
	flagRC            string
	flagPassword      string
	flagPorts         []string
	flagNoAllICMP     bool
	flagOutput        string
	flagForce         bool
	flagStun          string
	flagStunPort      int
	flagLog           string
	flagVerbose       bool
	flagProvider      string
	flagOSCommand     string
)

var RootCmd = &cobra.Command{
	Use:   name + " [flags] [ADDRESS|none]",
	Short: "Reconcile a security group's ingress rules with this host's public IP",
	Long: `secallow rewrites a dedicated security group so that only one IPv4
address is allowed in. The address is given on the command line or detected
with a STUN query. A change log remembers the last address so unchanged
addresses cost no API calls.

The literal address "none" removes every rule and creates none.`,
	Version: version.Version,
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	flags := RootCmd.Flags()
	flags.StringVarP(&flagSecurityGroup, "security-group", "g", "", "name of the security group to reconcile")
	flags.StringVar(&flagRC, "rc", "", "credential file, or directory of credential files")
	flags.StringVar(&flagPassword, "password", "", "file holding the password on its first line")
	flags.StringSliceVarP(&flagPorts, "port", "p", nil, "TCP port number or name to allow (repeatable, comma-separated)")
	flags.BoolVar(&flagNoAllICMP, "no-all-icmp", false, "do not create the ICMP allow rule")
	flags.StringVarP(&flagOutput, "output", "o", "", "append raw rule creation output to this file")
	flags.BoolVarP(&flagForce, "force", "f", false, "reconcile even if the address is unchanged")
	flags.StringVar(&flagStun, "stun", "", "STUN server for public address discovery")
	flags.IntVar(&flagStunPort, "stun-port", 0, "STUN server port")
	flags.StringVar(&flagLog, "log", "", "change log file")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")
	flags.StringVar(&flagProvider, "provider", "", "rule-set backend: cli, neutron or aws")
	flags.StringVar(&flagOSCommand, "os-command", "", "client binary used by the cli backend")

	RootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})
}

// Execute runs the root command and maps its outcome onto the documented
// exit codes.
func Execute() int {
	err := RootCmd.Execute()
	if err == nil {
		return ExitOK
	}

	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		fmt.Fprintf(os.Stderr, "Try '%s --help' for more information.\n", name)
		return ExitUsage
	}

	var ierr *internalError
	if errors.As(err, &ierr) {
		fmt.Fprintf(os.Stderr, "%s: internal error: %v\n", name, err)
		return ExitInternal
	}

	log.Error().Msg(err.Error())
	return ExitRuntime
}

func run(cmd *cobra.Command, args []string) error {
	logger.InitLogger(flagVerbose)

	settings, err := config.LoadConfig(config.Files(name))
	if err != nil {
		return err
	}
	applyFlags(cmd, &settings)

	if settings.SecurityGroup == "" {
		return &usageError{err: fmt.Errorf("a security group name is required (--security-group)")}
	}
	switch settings.Backend {
	case project.BackendCLI, project.BackendNeutron, project.BackendAWS:
	default:
		return &usageError{err: fmt.Errorf("unknown provider backend %q", settings.Backend)}
	}
	if settings.StunPort < 1 || settings.StunPort > 65535 {
		return &usageError{err: fmt.Errorf("stun port %d out of range", settings.StunPort)}
	}

	portList := settings.Ports
	if cmd.Flags().Changed("port") {
		portList, err = ports.Parse(flagPorts)
		if err != nil {
			return &usageError{err: err}
		}
	}

	explicit := ""
	if len(args) == 1 {
		explicit = args[0]
	}

	address, err := resolver.Resolve(explicit, settings.StunServer, settings.StunPort)
	if err != nil {
		return err
	}
	log.Debug().Msgf("Target address %s (%s)", address.IP, address.Source)

	if !flagForce && !changelog.HasChanged(settings.LogFile, address.IP) {
		log.Info().Msgf("Address %s unchanged since last run, nothing to do.", address.IP)
		return nil
	}

	output, closeOutput, err := openOutput(settings)
	if err != nil {
		return err
	}
	defer closeOutput()

	runID := uuid.NewString()
	updated, err := project.Run(cmd.Context(), project.Options{
		Backend:      settings.Backend,
		OSCommand:    settings.OSCommand,
		RCPath:       flagRC,
		PasswordFile: flagPassword,
		Group:        settings.SecurityGroup,
		Target:       address.IP,
		Ports:        portList,
		AllICMP:      settings.AllICMP,
		Output:       output,
		Description:  fmt.Sprintf("%s run %s", name, runID),
	})
	if err != nil {
		return err
	}

	if updated < 0 {
		return &internalError{err: fmt.Errorf("negative update count %d", updated)}
	}
	if updated == 0 {
		return fmt.Errorf("no security group was updated")
	}

	if err := changelog.Record(settings.LogFile, address.IP, address.Source, settings.KeepHistory); err != nil {
		return err
	}

	log.Info().Msgf("Updated %d security group(s) for address %s.", updated, address.IP)
	return nil
}

// applyFlags lays explicitly set flags over the configuration defaults.
func applyFlags(cmd *cobra.Command, settings *config.Settings) {
	if cmd.Flags().Changed("security-group") {
		settings.SecurityGroup = flagSecurityGroup
	}
	if flagNoAllICMP {
		settings.AllICMP = false
	}
	if cmd.Flags().Changed("stun") {
		settings.StunServer = flagStun
	}
	if cmd.Flags().Changed("stun-port") {
		settings.StunPort = flagStunPort
	}
	if cmd.Flags().Changed("log") {
		settings.LogFile = flagLog
	}
	if cmd.Flags().Changed("provider") {
		settings.Backend = flagProvider
	}
	if cmd.Flags().Changed("os-command") {
		settings.OSCommand = flagOSCommand
	}
}

func openOutput(settings config.Settings) (io.Writer, func(), error) {
	if flagOutput == "" {
		return io.Discard, func() {}, nil
	}
	f, err := os.OpenFile(flagOutput, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
