package cmd

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"osmgrab/internal/utils"
	"osmgrab/pkg/archive"
	"osmgrab/pkg/cache"
	"osmgrab/pkg/catalog"
	"osmgrab/pkg/fetch"
	"osmgrab/pkg/planner"
)

// sourceFactory builds an archive adapter on top of an HTTP client.
type sourceFactory func(client *fetch.Client) archive.Source

// session wires one archive's cache, catalog and planner together for
// a single command invocation.
type session struct {
	source  archive.Source
	planner *planner.Planner
	service *catalog.Service
	store   *cache.Store
}

func (s *session) Close() {
	if s.store != nil {
		s.store.Close()
	}
}

// openSession builds the full pipeline. With refresh set the catalog
// is rebuilt from the server instead of read from the cache.
func openSession(cmd *cobra.Command, newSource sourceFactory, refresh bool) (*session, error) {
	proxy, _ := rootCmd.PersistentFlags().GetString("proxy")
	noProgress, _ := rootCmd.PersistentFlags().GetBool("no-progress")

	client, err := fetch.NewClient(proxy, !noProgress)
	if err != nil {
		return nil, err
	}

	src := newSource(client)
	profile := src.Profile()

	cacheDir := viper.GetString("cache_dir")
	if cacheDir == "" {
		cacheDir, err = cache.DefaultDir()
		if err != nil {
			return nil, err
		}
	}
	store, err := cache.Open(filepath.Join(cacheDir, strings.ToLower(profile.Name)+".db"))
	if err != nil {
		return nil, err
	}

	confirm := confirmFunc()
	svc := &catalog.Service{
		Source: src,
		Cache:  cache.NewManager(store, confirm, utils.Log),
	}
	hier, index, err := svc.Load(cmd.Context(), refresh)
	if err != nil {
		store.Close()
		return nil, err
	}

	interval := viper.GetDuration("interval")
	if cmd.Flags().Changed("interval") {
		interval, _ = cmd.Flags().GetDuration("interval")
	}
	pl := planner.New(profile, hier, index, client, planner.Options{
		DownloadDir: viper.GetString("download_dir"),
		Interval:    interval,
		Confirm:     confirm,
		Log:         utils.Log,
	})
	return &session{
		source:  src,
		planner: pl,
		service: svc,
		store:   store,
	}, nil
}

// confirmFunc returns the confirmation gate for this invocation: a
// terminal prompt, or always-yes when --yes is set.
func confirmFunc() archive.ConfirmFunc {
	if yes, _ := rootCmd.PersistentFlags().GetBool("yes"); yes {
		return archive.ConfirmAll
	}
	reader := bufio.NewReader(os.Stdin)
	return func(prompt string) bool {
		fmt.Printf("%s [No]|Yes: ", strings.TrimSuffix(prompt, "?"))
		line, err := reader.ReadString('\n')
		if err != nil {
			return false
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true
		}
		return false
	}
}

// newArchiveCommand assembles the per-archive command tree shared by
// every download server.
func newArchiveCommand(use, short, long, defaultFormat string, newSource sourceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
	}
	cmd.AddCommand(
		newDownloadCmd(defaultFormat, newSource),
		newSubregionsCmd(newSource),
		newResolveCmd(newSource),
		newResolveFormatCmd(newSource),
		newRefreshCmd(newSource),
	)
	return cmd
}

func newDownloadCmd(defaultFormat string, newSource sourceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download NAME...",
		Short: "Download data extracts of one or more (sub)regions",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s, err := openSession(cmd, newSource, false)
			if err != nil {
				utils.Log.Fatal(err)
			}
			defer s.Close()

			format, _ := cmd.Flags().GetString("format")
			dir, _ := cmd.Flags().GetString("dir")
			update, _ := cmd.Flags().GetBool("update")
			deep, _ := cmd.Flags().GetBool("deep")

			paths, err := s.planner.Download(cmd.Context(), args, format, dir, update, deep)
			if err != nil {
				utils.Log.Fatal(err)
			}
			for _, p := range paths {
				fmt.Println(p)
			}
		},
	}
	cmd.Flags().StringP("format", "f", defaultFormat, "File format to download")
	cmd.Flags().StringP("dir", "d", "", "Directory to save the files to (default is the server's own layout)")
	cmd.Flags().BoolP("update", "u", false, "Re-download files that already exist")
	cmd.Flags().BoolP("deep", "", false, "Cascade into the deepest subregions when a format is unavailable")
	cmd.Flags().DurationP("interval", "i", 0, "Pause between consecutive downloads (e.g. 5s)")
	return cmd
}

func newSubregionsCmd(newSource sourceFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subregions NAME",
		Short: "List the subregions of a (sub)region",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s, err := openSession(cmd, newSource, false)
			if err != nil {
				utils.Log.Fatal(err)
			}
			defer s.Close()

			deep, _ := cmd.Flags().GetBool("deep")
			subs, err := s.planner.Subregions(args[0], deep)
			if err != nil {
				utils.Log.Fatal(err)
			}
			for _, name := range subs {
				fmt.Println(name)
			}
		},
	}
	cmd.Flags().BoolP("deep", "", false, "List the deepest subregions instead of the direct ones")
	return cmd
}

func newResolveCmd(newSource sourceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve NAME...",
		Short: "Resolve loosely specified (sub)region names to their canonical form",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s, err := openSession(cmd, newSource, false)
			if err != nil {
				utils.Log.Fatal(err)
			}
			defer s.Close()

			failed := false
			for _, name := range args {
				canonical, err := s.planner.ResolveArea(name)
				if err != nil {
					utils.Log.Error(err)
					failed = true
					continue
				}
				fmt.Println(canonical)
			}
			if failed {
				os.Exit(1)
			}
		},
	}
}

func newResolveFormatCmd(newSource sourceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve-format TOKEN...",
		Short: "Resolve file format tokens to their canonical form",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s, err := openSession(cmd, newSource, false)
			if err != nil {
				utils.Log.Fatal(err)
			}
			defer s.Close()

			failed := false
			for _, token := range args {
				canonical, err := s.planner.ResolveFormat(token)
				if err != nil {
					utils.Log.Error(err)
					failed = true
					continue
				}
				fmt.Println(canonical)
			}
			if failed {
				os.Exit(1)
			}
		},
	}
}

func newRefreshCmd(newSource sourceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rebuild the cached catalog from the download server",
		Run: func(cmd *cobra.Command, args []string) {
			start := time.Now()
			s, err := openSession(cmd, newSource, true)
			if err != nil {
				utils.Log.Fatal(err)
			}
			defer s.Close()
			utils.Log.Infof("Catalog of %s rebuilt in %s",
				s.source.Profile().Name, time.Since(start).Round(time.Millisecond))
		},
	}
}
