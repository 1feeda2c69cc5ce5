package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newForwardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forward ADDRESS...",
		Short: "Prints the coordinates of an address",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := strings.Join(args, " ")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				coords, err := a.geocoder.Forward(ctx, address)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%f,%f\n", coords.Latitude, coords.Longitude)
				return nil
			})
		},
	}
}

func newReverseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reverse LAT LNG",
		Short: "Prints the address closest to a coordinate",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			lat, lng, err := parseLatLng(args[0], args[1])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				address, err := a.geocoder.Reverse(ctx, lat, lng)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), address)
				return nil
			})
		},
	}
}

func newRegionCmd() *cobra.Command {
	var (
		circle bool
		radius float64
	)

	cmd := &cobra.Command{
		Use:   "region ADDRESS...",
		Short: "Prints the bounding box or bounding circle of a place",
		Long: `
Prints the viewport the geocoding provider associates with a place as JSON or, with
--circle, as "lat,lng,radiuskm" ready for circle based search APIs.
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := strings.Join(args, " ")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if !circle {
					region, err := a.geocoder.RegionBox(ctx, address)
					if err != nil {
						return err
					}
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(region)
				}

				c, err := a.geocoder.RegionCircle(ctx, address)
				if err != nil {
					return err
				}
				if radius > 0 {
					c.RadiusKm = radius
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%f,%f,%fkm\n", c.Center.Latitude, c.Center.Longitude, c.RadiusKm)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&circle, "circle", false, "print a bounding circle instead of the viewport")
	cmd.Flags().Float64Var(&radius, "radius", 0, "override the radius of the circle, in km")

	return cmd
}

func parseLatLng(latArg, lngArg string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(latArg, 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("invalid latitude %q", latArg)
	}
	lng, err := strconv.ParseFloat(lngArg, 64)
	if err != nil || lng < -180 || lng > 180 {
		return 0, 0, fmt.Errorf("invalid longitude %q", lngArg)
	}

	return lat, lng, nil
}
