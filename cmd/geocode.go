package main

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ccz-paraguacu/zoonoses/pkg/geocode"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode [ADDRESS]",
	Short: "Resolve one address and print the result as JSON",
	Example: `  zoonoses geocode "Rua Marechal Deodoro, 100"
  zoonoses geocode "Rua Sete de Setembro" --area 3 --block 9
  zoonoses geocode "Sítio Boa Vista" --lat -22.43 --lng -50.61`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := strings.Join(args, " ")
		area, _ := cmd.Flags().GetString("area")
		block, _ := cmd.Flags().GetString("block")

		resolver, _ := newResolver(cfg.Geocode, nil)

		var res *geocode.Result
		switch {
		case cmd.Flags().Changed("lat") || cmd.Flags().Changed("lng"):
			if !cmd.Flags().Changed("lat") || !cmd.Flags().Changed("lng") {
				return eris.New("--lat and --lng must be given together")
			}
			lat, _ := cmd.Flags().GetFloat64("lat")
			lng, _ := cmd.Flags().GetFloat64("lng")
			res = resolver.Manual(lat, lng, addr)
		case area != "" && block != "":
			res = resolver.ResolveWithArea(cmd.Context(), geocode.Query{Address: addr, Area: area, Block: block})
		default:
			res = resolver.Resolve(cmd.Context(), addr)
		}

		return printJSON(cmd.OutOrStdout(), res)
	},
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode output")
	}
	return nil
}

func init() {
	geocodeCmd.Flags().String("area", "", "administrative area label")
	geocodeCmd.Flags().String("block", "", "block (quadra) label")
	geocodeCmd.Flags().Float64("lat", 0, "manual latitude")
	geocodeCmd.Flags().Float64("lng", 0, "manual longitude")
	rootCmd.AddCommand(geocodeCmd)
}
