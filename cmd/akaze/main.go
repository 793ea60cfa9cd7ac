package main

import (
	"encoding/csv"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/philippefoubert/akaze"
	"github.com/philippefoubert/akaze/utils"
	"golang.org/x/term"
)

const HelpBanner = `
┌─┐┬┌─┌─┐┌─┐┌─┐
├─┤├┴┐├─┤┌─┘├┤
┴ ┴┴ ┴┴ ┴└─┘└─┘

Feature detection in nonlinear scale spaces.
    Version: %s

`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

// maxWorkers sets the maximum number of concurrently running workers.
const maxWorkers = 20

// result holds the relevant information about the processed image.
type result struct {
	path string
	err  error
}

var (
	// imgurl holds the file being accessed be it normal file or pipe name.
	imgurl *os.File
	// spinner used to instantiate and call the progress indicator.
	spinner *utils.Spinner
)

// Version indicates the current build version.
var Version string

var (
	// Flags
	source      = flag.String("in", pipeName, "Source")
	destination = flag.String("out", pipeName, "Destination (image extension draws an overlay, .csv dumps the keypoints)")
	octaves     = flag.Int("octaves", 4, "Maximum number of pyramid octaves")
	sublevels   = flag.Int("sublevels", 4, "Sublevels per octave")
	soffset     = flag.Float64("soffset", 1.6, "Base smoothing scale")
	dfactor     = flag.Float64("dfactor", 1.5, "Derivative scale factor")
	threshold   = flag.Float64("thresh", 0.001, "Detector response threshold")
	diffusivity = flag.String("diff", "pmg2", "Diffusivity function (pmg1, pmg2, weickert, charbonnier)")
	descriptor  = flag.String("desc", "mldb", "Descriptor family (kaze, kaze-upright, mldb, mldb-upright)")
	descSize    = flag.Int("dsize", 0, "MLDB descriptor bits, 0 for the full length")
	descChan    = flag.Int("dchannels", 3, "MLDB descriptor channels")
	descPattern = flag.Int("dpattern", 10, "MLDB sampling pattern size")
	withDesc    = flag.Bool("dump-desc", false, "Include the descriptors in the CSV output")
	workers     = flag.Int("conc", runtime.NumCPU(), "Number of files to process concurrently")

	// File related variables
	fs  os.FileInfo
	err error
)

func main() {
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, fmt.Sprintf(HelpBanner, Version))
		flag.PrintDefaults()
	}
	flag.Parse()

	opts, err := parseOptions()
	if err != nil {
		flag.Usage()
		log.Fatalf(utils.DecorateText("\n%v\n", utils.ErrorMessage), err)
	}

	spinnerText := fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ AKAZE", utils.StatusMessage),
		utils.DecorateText("is detecting the features...", utils.DefaultMessage))
	spinner = utils.NewSpinner(spinnerText, time.Millisecond*200, true)

	// Supported files
	validExtensions := []string{".jpg", ".png", ".jpeg", ".bmp", ".gif"}

	// Check if source path is a local image or URL.
	if utils.IsValidUrl(*source) {
		src, err := utils.DownloadImage(*source)
		defer src.Close()
		defer os.Remove(src.Name())

		fs, err = src.Stat()
		if err != nil {
			log.Fatalf(
				utils.DecorateText("Failed to load the source image: %v", utils.ErrorMessage),
				utils.DecorateText(err.Error(), utils.DefaultMessage),
			)
		}
		img, err := os.Open(src.Name())
		if err != nil {
			log.Fatalf(
				utils.DecorateText("Unable to open the temporary image file: %v", utils.ErrorMessage),
				utils.DecorateText(err.Error(), utils.DefaultMessage),
			)
		}
		imgurl = img
	} else {
		// Check if the source is a pipe name or a regular file.
		if *source == pipeName {
			fs, err = os.Stdin.Stat()
		} else {
			fs, err = os.Stat(*source)
		}
		if err != nil {
			log.Fatalf(
				utils.DecorateText("Failed to load the source image: %v", utils.ErrorMessage),
				utils.DecorateText(err.Error(), utils.DefaultMessage),
			)
		}
	}

	now := time.Now()

	switch mode := fs.Mode(); {
	case mode.IsDir():
		var wg sync.WaitGroup
		// Read destination file or directory.
		_, err := os.Stat(*destination)
		if err != nil {
			err = os.Mkdir(*destination, 0755)
			if err != nil {
				log.Fatalf(
					utils.DecorateText("Unable to get dir stats: %v\n", utils.ErrorMessage),
					utils.DecorateText(err.Error(), utils.DefaultMessage),
				)
			}
		}

		// Limit the concurrently running workers to maxWorkers.
		if *workers <= 0 || *workers > maxWorkers {
			*workers = runtime.NumCPU()
		}

		// Process recursively the image files from the specified directory concurrently.
		ch := make(chan result)
		done := make(chan interface{})
		defer close(done)

		paths, errc := walkDir(done, *source, validExtensions)

		wg.Add(*workers)
		for i := 0; i < *workers; i++ {
			go func() {
				defer wg.Done()
				consumer(done, paths, *destination, opts, ch)
			}()
		}

		// Close the channel after the values are consumed.
		go func() {
			defer close(ch)
			wg.Wait()
		}()

		// Consume the channel values.
		for res := range ch {
			printStatus(res.path, res.err)
		}

		if err := <-errc; err != nil {
			fmt.Fprintf(os.Stderr, utils.DecorateText(err.Error(), utils.ErrorMessage))
		}

	case mode.IsRegular() || mode&os.ModeNamedPipe != 0: // check for regular files or pipe names
		ext := filepath.Ext(*destination)
		if !isValidExtension(ext, validExtensions) && ext != ".csv" && *destination != pipeName {
			log.Fatalf(utils.DecorateText(fmt.Sprintf("%v file type not supported", ext), utils.ErrorMessage))
		}

		err := processor(*source, *destination, opts)
		printStatus(*destination, err)
	}
	fmt.Fprintf(os.Stderr, "\nExecution time: %s\n", utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage))
}

// parseOptions maps the command line flags onto the detector options.
func parseOptions() (akaze.Options, error) {
	opts := akaze.DefaultOptions()
	opts.Octaves = *octaves
	opts.Sublevels = *sublevels
	opts.SOffset = *soffset
	opts.DerivativeFactor = *dfactor
	opts.DThreshold = *threshold
	opts.DescriptorSize = *descSize
	opts.DescriptorChannels = *descChan
	opts.DescriptorPatternSize = *descPattern

	switch strings.ToLower(*diffusivity) {
	case "pmg1":
		opts.Diffusivity = akaze.DiffPMG1
	case "pmg2":
		opts.Diffusivity = akaze.DiffPMG2
	case "weickert":
		opts.Diffusivity = akaze.DiffWeickert
	case "charbonnier":
		opts.Diffusivity = akaze.DiffCharbonnier
	default:
		return opts, fmt.Errorf("unknown diffusivity function: %v", *diffusivity)
	}

	switch strings.ToLower(*descriptor) {
	case "kaze":
		opts.Descriptor = akaze.DescriptorKAZE
	case "kaze-upright":
		opts.Descriptor = akaze.DescriptorKAZEUpright
	case "mldb":
		opts.Descriptor = akaze.DescriptorMLDB
	case "mldb-upright":
		opts.Descriptor = akaze.DescriptorMLDBUpright
	default:
		return opts, fmt.Errorf("unknown descriptor family: %v", *descriptor)
	}
	return opts, nil
}

// walkDir starts a goroutine to walk the specified directory tree in recursive manner
// and send the path of each regular file on the string channel.
// It sends the result of the walk on the error channel.
// It terminates in case done channel is closed.
func walkDir(
	done <-chan interface{},
	src string,
	srcExts []string,
) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		errChan <- filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
			isFileSupported := false
			if err != nil {
				return err
			}
			if !info.Mode().IsRegular() {
				return nil
			}

			// Get the file base name.
			fx := filepath.Ext(info.Name())
			for _, ext := range srcExts {
				if ext == fx {
					isFileSupported = true
					break
				}
			}

			if isFileSupported {
				select {
				case <-done:
					return errors.New("directory walk cancelled")
				case pathChan <- path:
				}
			}
			return nil
		})
	}()
	return pathChan, errChan
}

// consumer reads the path names from the paths channel and runs the
// detector against the source image then sends the results on a new channel.
func consumer(
	done <-chan interface{},
	paths <-chan string,
	dest string,
	opts akaze.Options,
	res chan<- result,
) {
	for src := range paths {
		name := filepath.Base(src)
		dest := filepath.Join(dest, strings.TrimSuffix(name, filepath.Ext(name))+".csv")
		err := processor(src, dest, opts)

		select {
		case <-done:
			return
		case res <- result{
			path: src,
			err:  err,
		}:
		}
	}
}

// processor runs the detector over the source image and writes either
// the keypoint dump or the overlay, returning the error in case exists.
func processor(in, out string, opts akaze.Options) error {
	src, dst, err := pathToFile(in, out)
	if err != nil {
		return err
	}
	if f, ok := src.(*os.File); ok {
		defer f.Close()
	}
	if f, ok := dst.(*os.File); ok {
		defer f.Close()
	}

	// Capture CTRL-C signal and restore the cursor visibility back.
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalChan
		spinner.RestoreCursor()
		os.Exit(1)
	}()

	// Start the progress indicator.
	spinner.Start()
	err = detect(src, dst, out, opts)

	stopMsg := fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ AKAZE", utils.StatusMessage),
		utils.DecorateText("is detecting the features... ✔", utils.DefaultMessage))
	spinner.StopMsg = stopMsg

	// Stop the progress indicator.
	spinner.Stop()

	return err
}

// detect decodes the source image, runs the full pipeline and writes
// the requested output format.
func detect(src io.Reader, dst io.Writer, out string, opts akaze.Options) error {
	img, _, err := image.Decode(src)
	if err != nil {
		return err
	}

	// The detector keeps per-image state, so every file gets its own.
	det, err := akaze.New(opts)
	if err != nil {
		return err
	}
	kpts, desc, err := det.DetectAndCompute(img)
	if err != nil {
		return err
	}

	ext := filepath.Ext(out)
	if out == pipeName || ext == ".csv" {
		return writeKeypointsCSV(dst, kpts, desc, *withDesc)
	}

	overlay := akaze.DrawKeypoints(img, kpts, color.NRGBA{R: 0xff, G: 0x00, B: 0x4c, A: 0xff})
	return akaze.EncodeImage(dst, overlay)
}

// writeKeypointsCSV dumps the keypoints, one row each, optionally
// followed by the descriptor column.
func writeKeypointsCSV(w io.Writer, kpts []akaze.Keypoint, desc *akaze.Descriptors, withDescriptors bool) error {
	cw := csv.NewWriter(w)
	header := []string{"x", "y", "size", "angle", "response", "octave", "level"}
	if withDescriptors {
		header = append(header, "descriptor")
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for i, kpt := range kpts {
		row := []string{
			strconv.FormatFloat(float64(kpt.X), 'f', 4, 32),
			strconv.FormatFloat(float64(kpt.Y), 'f', 4, 32),
			strconv.FormatFloat(float64(kpt.Size), 'f', 4, 32),
			strconv.FormatFloat(float64(kpt.Angle), 'f', 4, 32),
			strconv.FormatFloat(float64(kpt.Response), 'g', -1, 32),
			strconv.Itoa(kpt.Octave),
			strconv.Itoa(kpt.LevelID),
		}
		if withDescriptors {
			row = append(row, formatDescriptor(desc, i))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// formatDescriptor renders the i-th descriptor row, hex for the binary
// family and space separated floats for the float family.
func formatDescriptor(desc *akaze.Descriptors, i int) string {
	if desc.ByteCols > 0 {
		return hex.EncodeToString(desc.BinaryRow(i))
	}
	vals := desc.FloatRow(i)
	parts := make([]string, len(vals))
	for k, v := range vals {
		parts[k] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return strings.Join(parts, " ")
}

// pathToFile converts the source and destination paths to readable and writable files.
func pathToFile(in, out string) (io.Reader, io.Writer, error) {
	var (
		src io.Reader
		dst io.Writer
		err error
	)
	// Check if the source path is a local image or URL.
	if utils.IsValidUrl(in) {
		src = imgurl
	} else {
		// Check if the source is a pipe name or a regular file.
		if in == pipeName {
			if term.IsTerminal(int(os.Stdin.Fd())) {
				return nil, nil, errors.New("`-` should be used with a pipe for stdin")
			}
			src = os.Stdin
		} else {
			src, err = os.Open(in)
			if err != nil {
				return nil, nil, fmt.Errorf("unable to open the source file: %v", err)
			}
		}
	}

	// Check if the destination is a pipe name or a regular file.
	if out == pipeName {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return nil, nil, errors.New("`-` should be used with a pipe for stdout")
		}
		dst = os.Stdout
	} else {
		dst, err = os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
		if err != nil {
			return nil, nil, fmt.Errorf("unable to create the destination file: %v", err)
		}
	}
	return src, dst, nil
}

// printStatus displays the relevant information about the detection process.
func printStatus(fname string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr,
			utils.DecorateText("\nError detecting the features: %s", utils.ErrorMessage),
			utils.DecorateText(fmt.Sprintf("\n\tReason: %v\n", err.Error()), utils.DefaultMessage),
		)
		os.Exit(0)
	} else {
		if fname != pipeName {
			fmt.Fprintf(os.Stderr, fmt.Sprintf("\nThe result has been saved as: %s %s\n",
				utils.DecorateText(filepath.Base(fname), utils.SuccessMessage),
				utils.DefaultColor,
			))
		}
	}
}

// isValidExtension checks for the supported extensions.
func isValidExtension(ext string, extensions []string) bool {
	for _, ex := range extensions {
		if ex == ext {
			return true
		}
	}
	return false
}
