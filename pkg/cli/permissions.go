package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/apkforge/apkforge/internal/engine"
)

func (c *CLI) newPermissionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "permissions [component...]",
		Short: "Show the Android permissions components require",
		Long: `With component types, print the union of the permissions they require,
one per line. Without arguments, print every known component type with its
permissions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPermissions(args)
		},
	}
}

func (c *CLI) runPermissions(components []string) error {
	factory := engine.NewDependencyFactory(c.tool, c.logger)
	defer factory.Close()

	registry := factory.Permissions()

	if len(components) > 0 {
		perms, err := registry.PermissionsFor(components)
		if err != nil {
			return err
		}
		for _, p := range perms.Sorted() {
			fmt.Fprintln(c.output, p)
		}
		return nil
	}

	names, err := registry.Components()
	if err != nil {
		return err
	}
	for _, name := range names {
		perms, err := registry.PermissionsFor([]string{name})
		if err != nil {
			return err
		}
		fmt.Fprintf(c.output, "%s: %s\n", name, strings.Join(perms.Sorted(), ", "))
	}
	return nil
}
