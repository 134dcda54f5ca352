package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/BDNK1/rotor/cli/internal/config"
	"github.com/BDNK1/rotor/cli/internal/terminal"
	"github.com/BDNK1/rotor/runtime"
	"github.com/spf13/cobra"
)

var optionFlags []string

var rotateCmd = &cobra.Command{
	Use:   "rotate <provider|domain>",
	Short: "Change the password of one account",
	Long: `Rotate looks up a provider by name or domain, asks for the current and the
new password, verifies the current one (prepare stage) and then submits the
change (execute stage).

Example:
  rotor rotate example.com --option username=alice
  rotor rotate example --option username='${EXAMPLE_USER}'
`,
	Args: cobra.ExactArgs(1),
	RunE: runRotate,
}

func init() {
	rotateCmd.Flags().StringArrayVarP(&optionFlags, "option", "o", nil, "Provider option as key=value (repeatable, ${VAR:default} allowed)")
}

func runRotate(cmd *cobra.Command, args []string) error {
	cfg, registry, err := setup()
	if err != nil {
		return err
	}

	def, ok := registry.Lookup(args[0])
	if !ok {
		return fmt.Errorf("no provider for %q, see 'rotor list'", args[0])
	}
	overrides, err := config.ParseOptionFlags(optionFlags)
	if err != nil {
		return err
	}

	prompter := terminal.NewPrompter(os.Stdin, cmd.ErrOrStderr())
	provider, err := runtime.NewFlowProvider(def, cfg.ProviderOptions(def.Name, overrides),
		runtime.WithPrompter(prompter),
		runtime.WithLogger(newLogger()),
		runtime.WithRunConfig(cfg.Run),
		runtime.WithSessionFactory(func() (runtime.Session, error) {
			return runtime.NewHTTPSession(cfg.Session), nil
		}),
	)
	if err != nil {
		return err
	}

	oldPassword, err := prompter.Secret("Current password")
	if err != nil {
		return err
	}
	newPassword, err := prompter.NewPassword("New password")
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Verifying current password for %s...\n", def.Name)
	if err := provider.Prepare(ctx, oldPassword); err != nil {
		return explained(err)
	}
	fmt.Fprintf(out, "Changing password for %s...\n", def.Name)
	if err := provider.Execute(ctx, oldPassword, newPassword); err != nil {
		return explained(err)
	}
	fmt.Fprintln(out, "Password changed.")
	return nil
}

func explained(err error) error {
	return errors.New(runtime.Explain(err))
}
