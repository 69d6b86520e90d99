package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# speech engine: auto, espeak, piper, gtts or mock
# auto tries piper, then espeak, then gtts
engine: "auto"
# blog API base URL
api: "http://127.0.0.1:8000"
# site used for share links
site: "https://bigairlab.com"
# style name or JSON path (default "auto")
style: "auto"
# word-wrap at width
width: 80
# mouse support
mouse: false

speech:
  # speaking rate (0.1 to 10)
  rate: 0.9
  # pitch (0 to 2)
  pitch: 1.0
  # volume (0 to 1)
  volume: 1.0
  # BCP 47 language tag used to pick a voice
  language: "en-US"
  # words per spoken chunk
  max_chunk_words: 50
  # pause between chunks
  chunk_delay: "100ms"
  # give up if the engine has not started by then
  start_timeout: "2s"
  # check for voices again if the engine never announces them
  voice_poll_delay: "500ms"

# downloaded articles
cache:
  # dir: "~/.cache/narrate/articles"
  max_size: 50 # MB
  ttl: "24h"

auto:
  # failures in a row before moving to the next engine
  max_failures: 2

espeak:
  # binary: "/usr/bin/espeak-ng"

piper:
  # binary: "~/.local/bin/piper"
  # voice model; the sample rate is read from <model>.json
  # model: "~/.local/share/piper/en_US-lessac-medium.onnx"

gtts:
  requests_per_minute: 60

mock:
  words_per_minute: 180
`

var (
	configPrintPath    bool
	configPrintDefault bool

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Edit the narrate config file",
		Long: paragraph(fmt.Sprintf("\n%s the narrate config file with $EDITOR. A default file is written first if none exists.",
			keyword("Edit"))),
		Example: paragraph("narrate config\nnarrate config --path\nnarrate config --default > narrate.yml"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			switch {
			case configPrintDefault:
				_, err := fmt.Fprint(out, defaultConfig)
				return err
			case configPrintPath:
				_, err := fmt.Fprintln(out, resolveConfigFile())
				return err
			}

			file, err := ensureConfigFile(resolveConfigFile())
			if err != nil {
				return err
			}
			return editConfig(file, out)
		},
	}
)

func init() {
	configCmd.Flags().BoolVar(&configPrintPath, "path", false, "print the config file location and exit")
	configCmd.Flags().BoolVar(&configPrintDefault, "default", false, "print the default config and exit")
}

// resolveConfigFile returns --config, or the file viper settled on.
func resolveConfigFile() string {
	if configFile != "" {
		return configFile
	}
	return viper.ConfigFileUsed()
}

func editConfig(file string, out io.Writer) error {
	c, err := editor.Cmd("Narrate", file)
	if err != nil {
		return fmt.Errorf("unable to find an editor: %w", err)
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return fmt.Errorf("editor exited: %w", err)
	}
	fmt.Fprintln(out, "Wrote config file to:", file)
	return nil
}

// ensureConfigFile writes the default config to file unless it already
// exists. Only YAML files are accepted.
func ensureConfigFile(file string) (string, error) {
	if file == "" {
		return "", errors.New("no config file location")
	}
	switch ext := filepath.Ext(file); ext {
	case ".yaml", ".yml":
	default:
		return "", fmt.Errorf("%q is not a supported config type: use .yaml or .yml", ext)
	}

	_, err := os.Stat(file)
	switch {
	case err == nil:
		return file, nil
	case !errors.Is(err, fs.ErrNotExist):
		return "", fmt.Errorf("unable to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
		return "", fmt.Errorf("unable to create config directory: %w", err)
	}
	if err := os.WriteFile(file, []byte(defaultConfig), 0o600); err != nil {
		return "", fmt.Errorf("unable to write config file: %w", err)
	}
	log.Debug("wrote default config", "path", file)
	return file, nil
}
