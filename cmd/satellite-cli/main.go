// Command satellite-cli runs satellite data operations from the terminal
// and prints the JSON result. It uses the same environment configuration
// as satellite-server.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/agrisa/satellite-data-service/internal/boot"
	"github.com/agrisa/satellite-data-service/internal/boundary"
	"github.com/agrisa/satellite-data-service/internal/cli"
	"github.com/agrisa/satellite-data-service/internal/farm"
	"github.com/agrisa/satellite-data-service/internal/logging"
	"github.com/agrisa/satellite-data-service/internal/vegetation"
)

// CLI flags
var (
	latFlag      float64
	lonFlag      float64
	bufferFlag   float64
	startFlag    string
	endFlag      string
	requestFlag  string
	logLevelFlag string
	timeoutFlag  time.Duration
	forceSARFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "satellite-cli",
	Short: "Query farm satellite indices and field boundaries",
	Long: `satellite-cli calls Earth Engine through the satellite data service and
prints JSON. Requests for farm operations are read from a JSON file with
--request (use - for stdin) in the same shape the HTTP API accepts.

Examples:
  satellite-cli validate --lat 10.76 --lon 106.66
  satellite-cli detect --lat 10.76 --lon 106.66 --start 2024-01-01 --end 2024-03-31
  satellite-cli ndvi --request farm.json
  cat region.json | satellite-cli region --request -`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init()
		if logLevelFlag != "" {
			logging.SetLevel(logLevelFlag)
		}
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check coordinates against the supported area",
	Run: func(cmd *cobra.Command, args []string) {
		lat, lon := coordinates(cmd)
		svc := farm.New(farm.Deps{})
		if err := cli.PrintJSON(os.Stdout, svc.ValidateCoordinates(lat, lon)); err != nil {
			cli.HandleError(err)
		}
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check Earth Engine and report dependency status",
	Run: func(cmd *cobra.Command, args []string) {
		run(func(ctx context.Context, svc *farm.Service) (any, error) {
			return svc.Health(ctx), nil
		})
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect the field boundary containing a point",
	Run: func(cmd *cobra.Command, args []string) {
		lat, lon := coordinates(cmd)
		req := boundary.PointRequest{
			Latitude:     lat,
			Longitude:    lon,
			BufferMeters: bufferFlag,
			Params:       boundary.Params{StartDate: startFlag, EndDate: endFlag},
		}
		run(func(ctx context.Context, svc *farm.Service) (any, error) {
			return svc.DetectBoundary(ctx, req)
		})
	},
}

var regionCmd = &cobra.Command{
	Use:   "region",
	Short: "Detect field boundaries inside a bounding box",
	Run: func(cmd *cobra.Command, args []string) {
		var req boundary.RegionRequest
		readRequest(&req)
		run(func(ctx context.Context, svc *farm.Service) (any, error) {
			return svc.DetectRegion(ctx, req)
		})
	},
}

var sceneCmd = &cobra.Command{
	Use:   "scene",
	Short: "Find the clearest scene around a point",
	Run: func(cmd *cobra.Command, args []string) {
		lat, lon := coordinates(cmd)
		req := farm.SceneRequest{Latitude: lat, Longitude: lon, StartDate: startFlag, EndDate: endFlag}
		run(func(ctx context.Context, svc *farm.Service) (any, error) {
			return svc.SceneImage(ctx, req)
		})
	},
}

func indexCmd(kind vegetation.Kind, use string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: "Compute the " + string(kind) + " time series of a farm",
		Run: func(cmd *cobra.Command, args []string) {
			var req farm.IndexRequest
			readRequest(&req)
			if forceSARFlag {
				req.ForceSARBackup = true
			}
			run(func(ctx context.Context, svc *farm.Service) (any, error) {
				return svc.BatchIndex(ctx, kind, req)
			})
		},
	}
}

var thumbnailsCmd = &cobra.Command{
	Use:   "thumbnails",
	Short: "Render cloud-adaptive farm thumbnails",
	Run: func(cmd *cobra.Command, args []string) {
		var req farm.ThumbnailRequest
		readRequest(&req)
		run(func(ctx context.Context, svc *farm.Service) (any, error) {
			return svc.AdaptiveThumbnails(ctx, req)
		})
	},
}

var imageryCmd = &cobra.Command{
	Use:   "imagery",
	Short: "Render natural-colour imagery for each scene over a farm",
	Run: func(cmd *cobra.Command, args []string) {
		var req farm.ImageryRequest
		readRequest(&req)
		run(func(ctx context.Context, svc *farm.Service) (any, error) {
			return svc.ImageryByBoundary(ctx, req)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().DurationVar(&timeoutFlag, "timeout", 5*time.Minute, "Overall time limit")

	for _, c := range []*cobra.Command{validateCmd, detectCmd, sceneCmd} {
		c.Flags().Float64Var(&latFlag, "lat", 0, "Latitude in degrees (prompted when omitted)")
		c.Flags().Float64Var(&lonFlag, "lon", 0, "Longitude in degrees (prompted when omitted)")
	}
	for _, c := range []*cobra.Command{detectCmd, sceneCmd} {
		c.Flags().StringVar(&startFlag, "start", "", "Start date (YYYY-MM-DD)")
		c.Flags().StringVar(&endFlag, "end", "", "End date (YYYY-MM-DD)")
	}
	detectCmd.Flags().Float64Var(&bufferFlag, "buffer", 0, "Search radius in metres around the point")

	ndvi := indexCmd(vegetation.NDVI, "ndvi")
	ndmi := indexCmd(vegetation.NDMI, "ndmi")
	ndvi.Flags().BoolVar(&forceSARFlag, "force-sar", false, "Use radar for every scene")
	for _, c := range []*cobra.Command{regionCmd, ndvi, ndmi, thumbnailsCmd, imageryCmd} {
		c.Flags().StringVarP(&requestFlag, "request", "r", "-", "JSON request file, - for stdin")
	}

	rootCmd.AddCommand(validateCmd, healthCmd, detectCmd, regionCmd, sceneCmd, ndvi, ndmi, thumbnailsCmd, imageryCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// coordinates returns --lat/--lon, prompting for any that were not set.
func coordinates(cmd *cobra.Command) (float64, float64) {
	lat, lon := latFlag, lonFlag
	var err error
	if !cmd.Flags().Changed("lat") {
		if lat, err = cli.PromptFloat(os.Stdin, os.Stderr, "Latitude", lat); err != nil {
			cli.HandleError(err)
		}
	}
	if !cmd.Flags().Changed("lon") {
		if lon, err = cli.PromptFloat(os.Stdin, os.Stderr, "Longitude", lon); err != nil {
			cli.HandleError(err)
		}
	}
	return lat, lon
}

func readRequest(v any) {
	if err := cli.ReadRequest(requestFlag, os.Stdin, v); err != nil {
		cli.HandleError(err)
	}
}

// run wires the service, executes op and prints its result.
func run(op func(ctx context.Context, svc *farm.Service) (any, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), timeoutFlag)
	defer cancel()

	app := boot.New(ctx, "satellite-cli")
	defer app.Close()

	start := time.Now()
	result, err := op(ctx, app.Service)
	if err != nil {
		cli.HandleError(err)
	}
	log.Info().Str("elapsed", cli.FormatDurationShort(time.Since(start))).Msg("Done")
	if err := cli.PrintJSON(os.Stdout, result); err != nil {
		cli.HandleError(err)
	}
}
