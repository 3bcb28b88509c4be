// Command fetch executes a named batch of HTTP requests, defined in a
// YAML file, concurrently against remote services and prints the
// results as an ordered JSON object.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/night-crawler/async-fetcher/pkg/fetcher"
	"github.com/night-crawler/async-fetcher/pkg/logging"
	"github.com/night-crawler/async-fetcher/pkg/task"
)

// taskSpec is one entry of the YAML batch definition.
type taskSpec struct {
	Name         string            `yaml:"name"`
	URL          string            `yaml:"url"`
	Method       string            `yaml:"method"`
	Body         any               `yaml:"body"`
	Headers      map[string]string `yaml:"headers"`
	Query        map[string]string `yaml:"query"`
	Decoding     string            `yaml:"decoding"`
	Timeout      float64           `yaml:"timeout"` // seconds
	Retries      *int              `yaml:"retries"`
	APIKey       string            `yaml:"api_key"`
	Language     string            `yaml:"language"`
	DoNotWait    bool              `yaml:"do_not_wait"`
	FailSilently bool              `yaml:"fail_silently"`
}

var (
	tasksFile  string
	service    string
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	caFile     string
	logLevel   string
	pretty     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "fetch",
		Short:        "Execute a named batch of HTTP requests concurrently",
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.Flags().StringVarP(&tasksFile, "tasks", "t", "", "YAML file with the batch definition (required)")
	rootCmd.Flags().StringVar(&service, "service", "api", "service label used in errors, logs and metrics")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "default per-attempt timeout")
	rootCmd.Flags().IntVar(&retries, "retries", 1, "default attempt budget per task")
	rootCmd.Flags().DurationVar(&retryDelay, "retry-delay", 1*time.Second, "fixed wait between retry attempts")
	rootCmd.Flags().StringVar(&caFile, "ca-file", "", "PEM bundle appended to the system root CAs")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&pretty, "pretty", false, "human-readable log output")
	_ = rootCmd.MarkFlagRequired("tasks")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(logLevel),
		Pretty: pretty,
		Output: os.Stderr,
	})

	specs, err := loadTasks(tasksFile)
	if err != nil {
		return err
	}

	batch := fetcher.NewBatch()
	for _, spec := range specs {
		d, err := buildTask(spec)
		if err != nil {
			return fmt.Errorf("task %q: %w", spec.Name, err)
		}
		batch.Add(spec.Name, d)
	}

	f := fetcher.New(fetcher.Config{
		ServiceName: service,
		Timeout:     timeout,
		NumRetries:  retries,
		RetryDelay:  retryDelay,
		SkipRetries: os.Getenv("ASYNC_FETCHER_SKIP_RETRIES") != "",
		CAFile:      caFile,
	})
	defer f.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info().
		Str("tasks_file", tasksFile).
		Int("tasks", batch.Len()).
		Msg("Running batch")

	results, err := f.Run(ctx, batch)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

// loadTasks reads and validates the YAML batch definition.
func loadTasks(path string) ([]taskSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tasks file: %w", err)
	}
	var specs []taskSpec
	if err := yaml.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parse tasks file: %w", err)
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("tasks file %s defines no tasks", path)
	}
	seen := make(map[string]bool, len(specs))
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("task #%d has no name", i+1)
		}
		if spec.URL == "" {
			return nil, fmt.Errorf("task %q has no url", spec.Name)
		}
		if seen[spec.Name] {
			return nil, fmt.Errorf("duplicate task name %q", spec.Name)
		}
		seen[spec.Name] = true
	}
	return specs, nil
}

// buildTask converts a YAML entry into a task descriptor.
func buildTask(spec taskSpec) (task.Descriptor, error) {
	opts := []task.Option{}
	if spec.Method != "" {
		opts = append(opts, task.WithMethod(spec.Method))
	}
	if spec.Body != nil {
		opts = append(opts, task.WithBody(spec.Body))
	}
	if len(spec.Headers) > 0 {
		opts = append(opts, task.WithHeaders(spec.Headers))
	}
	if len(spec.Query) > 0 {
		opts = append(opts, task.WithQuery(spec.Query))
	}
	if spec.Decoding != "" {
		opts = append(opts, task.WithDecoding(task.Decoding(spec.Decoding)))
	}
	if spec.Timeout > 0 {
		opts = append(opts, task.WithTimeout(time.Duration(spec.Timeout*float64(time.Second))))
	}
	if spec.Retries != nil {
		opts = append(opts, task.WithRetries(*spec.Retries))
	}
	if spec.APIKey != "" {
		opts = append(opts, task.WithAPIKey(spec.APIKey))
	}
	if spec.Language != "" {
		opts = append(opts, task.WithLanguage(spec.Language))
	}
	if spec.DoNotWait {
		opts = append(opts, task.WithDoNotWait())
	}
	if spec.FailSilently {
		opts = append(opts, task.WithFailSilently())
	}
	return task.New(spec.URL, opts...)
}
