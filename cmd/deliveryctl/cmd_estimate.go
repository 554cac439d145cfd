package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"homefoods-delivery/internal/delivery"
)

type estimate struct {
	City           string `json:"city,omitempty"`
	State          string `json:"state,omitempty"`
	DistanceMeters int    `json:"distance_meters,omitempty"`
	DeliveryCharge int    `json:"delivery_charge"`
	Estimated      bool   `json:"estimated"`
}

func (c *cli) estimateCmd() *cobra.Command {
	var (
		city, state string
		lat, lon    float64
	)
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the charge for a city outside the list by distance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := estimate{City: city, State: state, DeliveryCharge: delivery.FallbackCustomCharge}
			var p delivery.Point
			switch {
			case cmd.Flags().Changed("lat"):
				p = delivery.Point{Lat: lat, Lon: lon}
			case city != "":
				ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
				defer cancel()
				found, err := c.geocoder().Search(ctx, city, state)
				if err != nil {
					c.logger.Warn("city lookup failed, using fallback charge", zap.String("city", city), zap.Error(err))
					return printJSON(cmd.OutOrStdout(), out)
				}
				p = found
			default:
				return errors.New("either --city or --lat/--lon is required")
			}
			out.DistanceMeters = c.cfg.Origin.Distance(p)
			out.DeliveryCharge = delivery.EstimateByDistance(c.cfg.DistanceTiers, out.DistanceMeters)
			out.Estimated = true
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "City to look up")
	cmd.Flags().StringVar(&state, "state", "", "State of the city")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude")
	cmd.MarkFlagsRequiredTogether("lat", "lon")
	cmd.MarkFlagsMutuallyExclusive("city", "lat")
	return cmd
}
