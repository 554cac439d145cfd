package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"homefoods-delivery/internal/delivery"
	"homefoods-delivery/internal/geocode"
)

func (c *cli) resolveCmd() *cobra.Command {
	var (
		city, state string
		subtotal    int
	)
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Price delivery to a city picked from the list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := c.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			res := c.resolver().ResolveByExplicitCity(snap.Locations, city, state, subtotal, snap.FreeDelivery)
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&city, "city", "", "City name (required)")
	cmd.Flags().StringVar(&state, "state", "", "State name (required)")
	cmd.Flags().IntVar(&subtotal, "subtotal", 0, "Cart subtotal")
	_ = cmd.MarkFlagRequired("city")
	_ = cmd.MarkFlagRequired("state")
	return cmd
}

func (c *cli) detectCmd() *cobra.Command {
	var (
		names    []string
		state    string
		lat, lon float64
		subtotal int
	)
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Resolve geocoder output to a delivery city",
		Long: `Resolves either the candidate names given with --name/--state, or the
result of reverse geocoding --lat/--lon against the configured geocoder.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cand := delivery.GeocodeCandidate{PossibleCityNames: names, DetectedState: state}
			if cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon") {
				var err error
				cand, err = c.reverse(cmd.Context(), lat, lon)
				if err != nil {
					return err
				}
				c.logger.Debug("geocoded", zap.Strings("names", cand.PossibleCityNames), zap.String("state", cand.DetectedState))
			}
			snap, err := c.snapshot(cmd.Context())
			if err != nil {
				return err
			}
			res := c.resolver().ResolveByGeocode(snap.Locations, cand, subtotal, snap.FreeDelivery)
			return printJSON(cmd.OutOrStdout(), struct {
				Candidate  delivery.GeocodeCandidate `json:"candidate"`
				Resolution delivery.Resolution       `json:"resolution"`
				Guessed    bool                      `json:"guessed"`
			}{cand, res, res.Guessed()})
		},
	}
	cmd.Flags().StringSliceVar(&names, "name", nil, "Candidate city name, most specific first (repeatable)")
	cmd.Flags().StringVar(&state, "state", "", "Detected state")
	cmd.Flags().Float64Var(&lat, "lat", 0, "Latitude to reverse geocode")
	cmd.Flags().Float64Var(&lon, "lon", 0, "Longitude to reverse geocode")
	cmd.Flags().IntVar(&subtotal, "subtotal", 0, "Cart subtotal")
	cmd.MarkFlagsMutuallyExclusive("name", "lat")
	cmd.MarkFlagsRequiredTogether("lat", "lon")
	return cmd
}

func (c *cli) geocoder() geocode.Client {
	return geocode.New(c.cfg.GeocoderBaseURL, c.cfg.GeocoderUserAgent, &http.Client{Timeout: c.timeout},
		geocode.WithRate(c.cfg.GeocoderRPS, 1))
}

func (c *cli) reverse(ctx context.Context, lat, lon float64) (delivery.GeocodeCandidate, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	cand, err := c.geocoder().Reverse(ctx, lat, lon)
	if err != nil {
		return delivery.GeocodeCandidate{}, fmt.Errorf("reverse geocode: %w", err)
	}
	return cand, nil
}
