package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/akamensky/argparse"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"

	"peheader/common"
	"peheader/elfrw"
	"peheader/perw"
)

// Config holds the parsed command line.
type Config struct {
	Files       []string
	Quiet       bool
	Verbose     bool
	Parallel    bool
	MaxWorkers  int
	Raw         bool
	Verify      bool
	Template    string
	Output      string
	LogLevel    string
	ShowVersion bool
}

// ProcessStats accumulates classification counts across all inputs.
type ProcessStats struct {
	mu        sync.Mutex
	Processed int
	Failed    int
	PE        int
	COFF      int
	Managed   int
	Archive   int
	ELF       int
}

const (
	versionString = "peheader, version 0.3 (COFF/PE header dump)"

	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var (
	config = &Config{}
	stats  = &ProcessStats{}

	ErrVerifyMismatch = errors.New("decoded headers differ from debug/pe")
	ErrNoOutput       = errors.New("--template requires --output")
)

// ProcessResult is the outcome of processing one file. Report holds the
// full text printed for it.
type ProcessResult struct {
	Filename string
	Report   string
	Summary  perw.Summary
	Check    *common.CheckResult
	Error    error
}

func parseFlags(args []string) error {
	parser := argparse.NewParser("peheader", "Print the COFF and PE headers of Windows images.")

	files := parser.StringList("f", "file", &argparse.Options{Help: "Input file (repeatable)"})
	quiet := parser.Flag("q", "quiet", &argparse.Options{Help: "Print only the summary block"})
	verbose := parser.Flag("v", "verbose", &argparse.Options{Help: "Enable debug logging"})
	parallel := parser.Flag("j", "parallel", &argparse.Options{Help: "Process files in parallel"})
	workers := parser.Int("w", "workers", &argparse.Options{Default: 4, Help: "Maximum number of parallel workers"})
	raw := parser.Flag("r", "raw", &argparse.Options{Help: "Also dump the decoded records"})
	verify := parser.Flag("c", "verify", &argparse.Options{Help: "Cross-check decoded fields against debug/pe"})
	template := parser.Selector("t", "template", []string{"PE32", "PE32+"}, &argparse.Options{Help: "Write a minimal header image of this variant"})
	output := parser.String("o", "output", &argparse.Options{Help: "Path for --template"})
	logLevel := parser.String("l", "log-level", &argparse.Options{
		Default: common.DefaultLogLevel(),
		Help:    "Log level (env " + common.LogLevelEnv + ")",
	})
	version := parser.Flag("V", "version", &argparse.Options{Help: "Display version information and exit"})

	if err := parser.Parse(args); err != nil {
		_, _ = fmt.Fprint(os.Stderr, parser.Usage(err))
		return err
	}

	config.Files = *files
	config.Quiet = *quiet
	config.Verbose = *verbose
	config.Parallel = *parallel
	config.MaxWorkers = *workers
	config.Raw = *raw
	config.Verify = *verify
	config.Template = *template
	config.Output = *output
	config.LogLevel = *logLevel
	config.ShowVersion = *version

	if config.MaxWorkers < 1 {
		config.MaxWorkers = 1
	}
	if config.MaxWorkers > 16 {
		config.MaxWorkers = 16
	}
	if config.Template != "" && config.Output == "" {
		_, _ = fmt.Fprint(os.Stderr, parser.Usage(ErrNoOutput))
		return ErrNoOutput
	}
	if len(config.Files) == 0 && config.Template == "" && !config.ShowVersion {
		err := errors.New("at least one -f/--file is required")
		_, _ = fmt.Fprint(os.Stderr, parser.Usage(err))
		return err
	}
	return nil
}

func processFile(filename string) *ProcessResult {
	result := &ProcessResult{Filename: filename}
	log := common.Log.With().Str("file", filename).Logger()

	img, err := perw.OpenImage(filename)
	if err != nil {
		result.Error = errors.Wrap(err, "cannot open file")
		return result
	}
	defer func(img *perw.Image) {
		_ = img.Close()
	}(img)

	h, err := img.Decode(common.Log)
	result.Error = err
	result.Summary = perw.Summarize(h, err)
	if errors.Is(err, perw.ErrFormat) && !result.Summary.Archive {
		if info, ok := elfrw.Identify(img.Bytes()); ok {
			result.Summary.ELF = true
			log.Debug().
				Bool("64bit", info.Is64Bit).
				Uint16("type", info.Type).
				Bool("loadable", info.IsExecutableOrShared()).
				Uint16("sections", info.Sections).
				Uint16("segments", info.Segments).
				Msg("input is an ELF image")
		}
	}

	var out bytes.Buffer
	if !config.Quiet {
		perw.Dump(&out, h)
		if err != nil && h != nil {
			_, _ = fmt.Fprintf(&out, "Error: %v\n", err)
		}
		if config.Raw && h != nil {
			spew.Fdump(&out, h)
		}
	}
	if config.Verify && h != nil && h.File != nil {
		result.Check = verifyImage(h, img)
		_, _ = fmt.Fprintf(&out, "VERIFY %s\n", result.Check)
		if result.Check.Failed() && result.Error == nil {
			result.Error = errors.Wrapf(ErrVerifyMismatch, "%d fields", result.Check.Count)
		}
	}
	perw.WriteSummary(&out, result.Summary)
	result.Report = out.String()
	return result
}

func verifyImage(h *perw.Headers, img *perw.Image) *common.CheckResult {
	mismatches, err := perw.Verify(h, img.Reader())
	if err != nil {
		return common.NewSkipped(err.Error())
	}
	for _, m := range mismatches {
		common.Log.Warn().Str("file", img.Path).Msg(m.String())
	}
	return common.NewChecked("debug/pe", len(mismatches))
}

func processFilesSequential(filenames []string) []ProcessResult {
	results := make([]ProcessResult, 0, len(filenames))

	for _, filename := range filenames {
		result := processFile(filename)
		results = append(results, *result)
		printResult(result)
	}

	return results
}

// processFilesParallel decodes with a bounded pool and prints the reports
// in input order once every worker is done.
func processFilesParallel(filenames []string) []ProcessResult {
	type job struct {
		index    int
		filename string
	}
	jobs := make(chan job, len(filenames))
	results := make([]ProcessResult, len(filenames))

	var wg sync.WaitGroup
	for i := 0; i < config.MaxWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.index] = *processFile(j.filename)
			}
		}()
	}

	for i, filename := range filenames {
		jobs <- job{index: i, filename: filename}
	}
	close(jobs)
	wg.Wait()

	for i := range results {
		printResult(&results[i])
	}
	return results
}

func printResult(result *ProcessResult) {
	if len(config.Files) > 1 {
		fmt.Printf("==> %s <==\n", result.Filename)
	}
	fmt.Print(result.Report)

	if result.Error == nil {
		return
	}
	if config.Verbose {
		common.Log.Error().Err(result.Error).Str("file", result.Filename).Msg("processing failed")
		return
	}
	_, _ = fmt.Fprintf(os.Stderr, "%s: %s: %v\n", filepath.Base(os.Args[0]), result.Filename, result.Error)
}

func updateStats(results []ProcessResult) {
	stats.mu.Lock()
	defer stats.mu.Unlock()

	for _, result := range results {
		stats.Processed++
		if result.Error != nil {
			stats.Failed++
		}
		s := result.Summary
		if s.PE {
			stats.PE++
		}
		if s.COFF {
			stats.COFF++
		}
		if s.Managed {
			stats.Managed++
		}
		if s.Archive {
			stats.Archive++
		}
		if s.ELF {
			stats.ELF++
		}
	}
}

func printSummary() {
	if stats.Processed == 0 {
		return
	}

	fmt.Printf("\nTotals:\n")
	fmt.Printf("  Files processed: %d\n", stats.Processed)
	fmt.Printf("  Successful: %d\n", stats.Processed-stats.Failed)
	fmt.Printf("  Failed: %d\n", stats.Failed)
	fmt.Printf("  PE: %d (COFF only: %d, managed: %d)\n", stats.PE, stats.COFF, stats.Managed)
	if stats.Archive > 0 {
		fmt.Printf("  Archives: %d\n", stats.Archive)
	}
	if stats.ELF > 0 {
		fmt.Printf("  ELF: %d\n", stats.ELF)
	}
}

func writeTemplate() error {
	v, err := perw.ParseVariant(config.Template)
	if err != nil {
		return err
	}
	if err := perw.WriteTemplate(config.Output, v); err != nil {
		return errors.Wrapf(err, "write %s", config.Output)
	}
	common.Log.Info().Stringer("variant", v).Str("output", config.Output).Msg("wrote header template")
	return nil
}

func run(args []string) int {
	if err := parseFlags(args); err != nil {
		return exitUsage
	}

	if err := common.SetLevel(config.LogLevel); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		return exitUsage
	}
	if config.Verbose {
		common.SetLevelDebug()
	}

	if config.ShowVersion {
		fmt.Println(versionString)
		return exitOK
	}

	if config.Template != "" {
		if err := writeTemplate(); err != nil {
			common.Log.Error().Err(err).Msg("template")
			return exitFailure
		}
	}

	filenames := config.Files
	if len(filenames) == 0 {
		return exitOK
	}

	var results []ProcessResult
	if config.Parallel && len(filenames) > 1 {
		common.Log.Debug().Int("files", len(filenames)).Int("workers", config.MaxWorkers).Msg("processing in parallel")
		results = processFilesParallel(filenames)
	} else {
		results = processFilesSequential(filenames)
	}

	updateStats(results)

	if len(filenames) > 1 || config.Verbose {
		printSummary()
	}

	if stats.Failed > 0 {
		return exitFailure
	}
	return exitOK
}

func main() {
	os.Exit(run(os.Args))
}
