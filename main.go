// Package main provides the entry point for the narrate CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/bigairlab/narrate/blog"
	"github.com/bigairlab/narrate/speech"
	"github.com/bigairlab/narrate/speech/engines/fallback"
	"github.com/bigairlab/narrate/ui"
)

const appName = "narrate"

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile    string
	engineName    string
	headless      bool
	apiURL        string
	language      string
	rate          float64
	maxChunkWords int
	style         string
	width         uint
	mouse         bool

	rootCmd = &cobra.Command{
		Use:   "narrate [ID|FILE|-]",
		Short: "Read Big AIR Lab articles aloud in the terminal",
		Long: paragraph(
			fmt.Sprintf("\nRead Big AIR Lab articles %s, one chunk at a time.", keyword("aloud")),
		),
		Example: paragraph("narrate 665f1c2e9b\nnarrate draft.md\ncat draft.md | narrate --headless -"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if style != styles.AutoStyle && styles.DefaultStyles[style] == nil {
		style = expandPath(style)
		if _, err := os.Stat(style); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func validateOptions(cmd *cobra.Command) error {
	// grab config values from Viper
	engineName = viper.GetString("engine")
	apiURL = viper.GetString("api")
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")
	headless = viper.GetBool("headless")

	if err := validateEngine(engineName); err != nil {
		return err
	}

	// Command line flags override the speech section of the config file.
	if cmd.Flags().Changed("lang") {
		viper.Set("speech.language", language)
	}
	if cmd.Flags().Changed("rate") {
		viper.Set("speech.rate", rate)
	}
	if cmd.Flags().Changed("max-chunk-words") {
		viper.Set("speech.max_chunk_words", maxChunkWords)
	}
	if err := speech.LoadConfigFromViper().Validate(); err != nil {
		return fmt.Errorf("invalid speech config: %w", err)
	}

	// validate the glamour style
	style = viper.GetString("style")
	if err := validateStyle(style); err != nil {
		return err
	}

	isTerminal := term.IsTerminal(int(os.Stdout.Fd()))
	// Without a terminal there is nothing to draw on.
	if !isTerminal {
		headless = true
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") {
		if isTerminal && width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}

			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, fmt.Errorf("unable to open file: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// loaderFromArg resolves the command line argument into a document loader:
// "-" reads stdin, an existing path reads a local draft and anything else is
// treated as an article ID.
func loaderFromArg(arg string, stdin io.Reader, newClient func() (*blog.Client, error)) (ui.Loader, error) {
	if arg == "-" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("unable to read from stdin: %w", err)
		}
		return ui.StaticLoader(ui.MarkdownDocument(b)), nil
	}

	if st, err := os.Stat(arg); err == nil {
		if st.IsDir() {
			return nil, fmt.Errorf("%s is a directory: use narrate list --dir %s", arg, arg)
		}
		p, err := filepath.Abs(arg)
		if err != nil {
			return nil, fmt.Errorf("unable to get absolute path: %w", err)
		}
		return ui.FileLoader(p), nil
	}

	id := strings.TrimSpace(arg)
	if id == "" {
		return nil, errors.New("missing article")
	}
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	return ui.BlogLoader(client, id), nil
}

func execute(cmd *cobra.Command, args []string) error {
	arg := ""
	if len(args) > 0 {
		arg = args[0]
	}
	// if stdin is a pipe then use stdin for input. note that you can also
	// explicitly use a - to read from stdin.
	if arg == "" {
		yes, err := stdinIsPipe()
		if err != nil {
			return err
		}
		if !yes {
			return cmd.Help()
		}
		arg = "-"
	}

	load, err := loaderFromArg(arg, os.Stdin, newBlogClient)
	if err != nil {
		return err
	}

	engine, err := newEngine(engineName, engineOptions{
		EspeakBinary:      viper.GetString("espeak.binary"),
		PiperBinary:       viper.GetString("piper.binary"),
		PiperModel:        viper.GetString("piper.model"),
		MaxFailures:       viper.GetInt("auto.max_failures"),
		GTTSURL:           viper.GetString("gtts.url"),
		RequestsPerMinute: viper.GetInt("gtts.requests_per_minute"),
		MockWordsPerMin:   viper.GetInt("mock.words_per_minute"),
	})
	if err != nil {
		return err
	}

	ctl := speech.NewController(engine, speech.LoadConfigFromViper())
	defer ctl.Close()
	log.Info("controller ready", "engine", engineName, "headless", headless)

	if headless {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		doc, err := load(ctx)
		if err != nil {
			return err
		}
		return runHeadless(ctx, ctl, doc, cmd.ErrOrStderr())
	}
	return runTUI(ctl, load)
}

func runTUI(ctl *speech.Controller, load ui.Loader) error {
	// Read environment to get debugging stuff
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	// use style set in env, or the flag/config one if unset or invalid
	if cfg.GlamourStyle == "" || validateStyle(cfg.GlamourStyle) != nil {
		cfg.GlamourStyle = expandPath(style)
	}
	if site := viper.GetString("site"); site != "" && os.Getenv("NARRATE_SITE_URL") == "" {
		cfg.SiteURL = site
	}
	cfg.GlamourMaxWidth = width
	cfg.EnableMouse = mouse

	// Run Bubble Tea program
	if _, err := ui.NewProgram(cfg, ctl, load).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

// newBlogClient returns a client for the configured API, backed by the
// on-disk article cache when it can be opened.
func newBlogClient() (*blog.Client, error) {
	opts := []blog.ClientOption{
		blog.WithRequestsPerMinute(viper.GetInt("api_requests_per_minute")),
	}
	cache, err := openCache()
	if err != nil {
		log.Warn("article cache disabled", "error", err)
	} else {
		opts = append(opts, blog.WithCache(cache))
	}
	return blog.NewClient(apiURL, opts...), nil
}

func cacheDir() (string, error) {
	if dir := viper.GetString("cache.dir"); dir != "" {
		return expandPath(dir), nil
	}
	dir, err := gap.NewScope(gap.User, appName).CacheDir()
	if err != nil {
		return "", fmt.Errorf("unable to find cache directory: %w", err)
	}
	return filepath.Join(dir, "articles"), nil
}

func openCache() (*blog.Cache, error) {
	dir, err := cacheDir()
	if err != nil {
		return nil, err
	}
	ttl := viper.GetDuration("cache.ttl")
	size := viper.GetInt64("cache.max_size") * 1024 * 1024
	cache, err := blog.NewCache(dir, size, ttl)
	if err != nil {
		return nil, fmt.Errorf("unable to open cache: %w", err)
	}
	return cache, nil
}

// expandPath expands a leading ~ and environment variables.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	expanded, err := homedir.Expand(os.ExpandEnv(path))
	if err != nil {
		return path
	}
	return expanded
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	// A missing .env file is the normal case.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Could not load .env file", "error", err)
	}

	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", blog.DefaultBaseURL, "blog API base URL")
	rootCmd.Flags().StringVarP(&engineName, "engine", "e", engineAuto, "speech engine ("+strings.Join(engineNames, "|")+")")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "read aloud without the TUI")
	rootCmd.Flags().StringVarP(&language, "lang", "L", "", "speech language, e.g. en-GB")
	rootCmd.Flags().Float64VarP(&rate, "rate", "r", 0, "speech rate (0.1-10)")
	rootCmd.Flags().IntVar(&maxChunkWords, "max-chunk-words", 0, "words per spoken chunk")
	rootCmd.Flags().StringVarP(&style, "style", "s", styles.AutoStyle, "style name or JSON path")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to disable)")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.Flags().MarkHidden("mouse")

	// Config bindings
	_ = viper.BindPFlag("engine", rootCmd.Flags().Lookup("engine"))
	_ = viper.BindPFlag("headless", rootCmd.Flags().Lookup("headless"))
	_ = viper.BindPFlag("api", rootCmd.PersistentFlags().Lookup("api"))
	_ = viper.BindPFlag("style", rootCmd.Flags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))

	viper.SetDefault("engine", engineAuto)
	viper.SetDefault("auto.max_failures", fallback.DefaultMaxFailures)
	viper.SetDefault("api", blog.DefaultBaseURL)
	viper.SetDefault("api_requests_per_minute", 120)
	viper.SetDefault("site", "https://bigairlab.com")
	viper.SetDefault("style", styles.AutoStyle)
	viper.SetDefault("width", 0)
	viper.SetDefault("cache.dir", "")
	viper.SetDefault("cache.max_size", 50)
	viper.SetDefault("cache.ttl", 24*time.Hour)
	viper.SetDefault("gtts.requests_per_minute", 60)
	viper.SetDefault("mock.words_per_minute", 180)
	speech.SetDefaults(viper.GetViper())

	rootCmd.AddCommand(configCmd, manCmd, listCmd, cacheCmd, publishCmd, contactCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("NARRATE_CONFIG_HOME"); c != "" {
		dirs = append([]string{expandPath(c)}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(appName)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	configFile = filepath.Join(dirs[0], appName+".yml")
	if _, err := ensureConfigFile(configFile); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
