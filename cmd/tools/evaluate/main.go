// Command evaluate runs the discount engine against a fixture file and prints the
// operations it would return. Fixtures may be JSON or YAML.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/discount-engine/internal/definition"
	"github.com/noah-isme/discount-engine/internal/discount"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logger.Fatal().Err(err).Msg("evaluate failed")
	}
}

type options struct {
	input    string
	config   string
	pretty   bool
	report   bool
	validate bool
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	fs.StringVar(&opts.input, "input", "-", "cart fixture (JSON or YAML); - reads stdin")
	fs.StringVar(&opts.config, "config", "", "configuration file that replaces the fixture metafield")
	fs.BoolVar(&opts.pretty, "pretty", false, "indent the output")
	fs.BoolVar(&opts.report, "report", false, "print outcome, strategy counts and the parsed configuration")
	fs.BoolVar(&opts.validate, "validate", false, "also check the configuration against the authoring rules")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

type report struct {
	discount.Evaluation
	Issues map[string]string `json:"issues,omitempty"`
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	raw, err := readSource(opts.input, stdin)
	if err != nil {
		return err
	}
	data, err := toJSON(raw, opts.input)
	if err != nil {
		return fmt.Errorf("decode %s: %w", opts.input, err)
	}
	var in discount.Input
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("decode %s: %w", opts.input, err)
	}

	if opts.config != "" {
		cfgRaw, err := os.ReadFile(opts.config)
		if err != nil {
			return err
		}
		cfgJSON, err := toJSON(cfgRaw, opts.config)
		if err != nil {
			return fmt.Errorf("decode %s: %w", opts.config, err)
		}
		in.Discount.Metafield = &discount.Metafield{JSONValue: cfgJSON}
	}

	eval := discount.Evaluate(in)
	var out any = eval.Result
	if opts.report || opts.validate {
		rep := report{Evaluation: eval}
		if opts.validate {
			rep.Issues = issues(in.Discount.Metafield)
		}
		out = rep
	}

	enc := json.NewEncoder(stdout)
	if opts.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}

func readSource(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// toJSON converts YAML fixtures to JSON. Files ending in .json, and stdin that starts with
// a brace, are passed through.
func toJSON(raw []byte, name string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(name))
	trimmed := bytes.TrimSpace(raw)
	if ext == ".json" || (ext != ".yaml" && ext != ".yml" && len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')) {
		return trimmed, nil
	}
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

func issues(m *discount.Metafield) map[string]string {
	var raw json.RawMessage
	switch {
	case m == nil:
		return map[string]string{"config": "missing"}
	case m.Value != "":
		raw = json.RawMessage(m.Value)
	default:
		raw = m.JSONValue
	}
	err := definition.ValidateConfig(raw)
	if err == nil {
		return nil
	}
	var verr *definition.ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return map[string]string{"config": err.Error()}
}
