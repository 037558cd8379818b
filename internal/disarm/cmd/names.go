package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"disarm/disasm"
)

// maxNameID bounds --all listings; both engines number well below it.
const maxNameID = 2048

func newNamesCmd(a *app) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "names {insn|reg|group} [id...]",
		Short: "Resolve instruction, register and group ids to names",
		Example: `
# Name ARM64 registers 1 and 2
disarm names reg 1 2

# List every ARM32 group name
disarm -m arm32 names group --all
  `,
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{"insn", "reg", "group"},
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := a.open(a.cfg.Mode)
			if err != nil {
				return err
			}
			defer h.Close()

			lookup, err := nameLookup(h, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if all {
				for id := range maxNameID {
					name, err := lookup(uint32(id))
					if err != nil {
						return err
					}
					if name != "" {
						fmt.Fprintf(out, "%d\t%s\n", id, name)
					}
				}
				return nil
			}
			if len(args) == 1 {
				return fmt.Errorf("no ids given; pass ids or --all")
			}
			for _, arg := range args[1:] {
				id, err := strconv.ParseUint(arg, 0, 32)
				if err != nil {
					return fmt.Errorf("invalid id %q: %w", arg, err)
				}
				name, err := lookup(uint32(id))
				if err != nil {
					return err
				}
				if name == "" {
					name = "(unknown)"
				}
				fmt.Fprintf(out, "%d\t%s\n", id, name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "List every id that has a name")
	return cmd
}

func nameLookup(h *disasm.Handle, kind string) (func(uint32) (string, error), error) {
	switch kind {
	case "insn":
		return h.InsnName, nil
	case "reg":
		return func(id uint32) (string, error) { return h.RegName(disasm.RegID(id)) }, nil
	case "group":
		return func(id uint32) (string, error) { return h.GroupName(disasm.GroupID(id)) }, nil
	}
	return nil, fmt.Errorf("unknown name kind %q (want insn, reg or group)", kind)
}
