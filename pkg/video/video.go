// Package video scans screen recordings for template images.
//
// Frames are decoded through an ffmpeg subprocess as a sequential PNG
// stream, so a scan never holds more than one frame in memory. ffmpeg
// and ffprobe must be available on PATH.
package video

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/devicelab-dev/uiscout/pkg/core"
	"github.com/devicelab-dev/uiscout/pkg/imagematch"
	"github.com/devicelab-dev/uiscout/pkg/logger"
)

// DefaultThreshold is applied when a caller passes a non-positive
// match threshold.
const DefaultThreshold = 0.9

// VideoMatch reports one sampled frame whose best template match cleared
// the threshold.
type VideoMatch struct {
	// Timestamp is the frame position in seconds from the start.
	Timestamp float64
	// Confidence is the best match confidence found in the frame.
	Confidence float64
	// FrameNumber counts decoded frames from zero.
	FrameNumber int
}

// Scanner runs video scans through local ffmpeg and ffprobe binaries.
type Scanner struct {
	ffmpegPath  string
	ffprobePath string
}

// NewScanner locates ffmpeg and ffprobe on PATH.
func NewScanner() (*Scanner, error) {
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH; install FFmpeg to scan videos")
	}
	ffprobe, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe not found in PATH; install FFmpeg to scan videos")
	}
	return &Scanner{ffmpegPath: ffmpeg, ffprobePath: ffprobe}, nil
}

// FindInVideo scans the video for the template and returns every sampled
// frame whose best match clears the threshold.
//
// skipFrames is a sampling stride: 1 matches every frame, 5 matches every
// fifth frame. Every frame is still decoded since the stream is sequential,
// only the matching work is skipped. An empty detectors list runs all
// matching strategies.
func (s *Scanner) FindInVideo(ctx context.Context, videoPath, templatePath string, threshold float64, skipFrames int, detectors ...imagematch.Detector) ([]VideoMatch, error) {
	tpl, err := imagematch.Load(templatePath)
	if err != nil {
		return nil, err
	}

	fps, err := s.frameRate(ctx, videoPath)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", videoPath,
		"-f", "image2pipe", "-vcodec", "png", "-",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}

	found, scanErr := scanStream(stdout, tpl, threshold, skipFrames, fps, detectors...)
	if scanErr != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, scanErr
	}
	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, core.ErrVideoDecode.WithMessagef("ffmpeg exited: %s", strings.TrimSpace(stderr.String())).WithCause(err)
	}

	logger.Debug("video scan of %s: %d matching frames at stride %d", videoPath, len(found), skipFrames)
	return found, nil
}

// FindInVideo is a convenience wrapper that discovers the binaries and
// runs a single scan.
func FindInVideo(ctx context.Context, videoPath, templatePath string, threshold float64, skipFrames int, detectors ...imagematch.Detector) ([]VideoMatch, error) {
	s, err := NewScanner()
	if err != nil {
		return nil, err
	}
	return s.FindInVideo(ctx, videoPath, templatePath, threshold, skipFrames, detectors...)
}

// frameRate probes the first video stream for its average frame rate.
func (s *Scanner) frameRate(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, s.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=avg_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, core.ErrVideoDecode.WithMessagef("ffprobe %s: %s", videoPath, strings.TrimSpace(stderr.String())).WithCause(err)
	}
	return parseFrameRate(stdout.String())
}

// parseFrameRate accepts ffprobe's rational form ("30000/1001") or a
// plain decimal.
func parseFrameRate(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if i := strings.IndexByte(raw, '/'); i >= 0 {
		num, errNum := strconv.ParseFloat(raw[:i], 64)
		den, errDen := strconv.ParseFloat(raw[i+1:], 64)
		if errNum != nil || errDen != nil || den == 0 || num <= 0 {
			return 0, core.ErrVideoDecode.WithMessagef("unusable frame rate %q", raw)
		}
		return num / den, nil
	}
	fps, err := strconv.ParseFloat(raw, 64)
	if err != nil || fps <= 0 {
		return 0, core.ErrVideoDecode.WithMessagef("unusable frame rate %q", raw)
	}
	return fps, nil
}

// scanStream matches sampled frames from a sequential PNG stream.
func scanStream(r io.Reader, tpl image.Image, threshold float64, skipFrames int, fps float64, detectors ...imagematch.Detector) ([]VideoMatch, error) {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	stride := skipFrames
	if stride < 1 {
		stride = 1
	}

	var found []VideoMatch
	err := decodeFrames(r, func(frame int, img image.Image) error {
		if frame%stride != 0 {
			return nil
		}
		matches := imagematch.FindAll(img, tpl, threshold, detectors...)
		if len(matches) == 0 {
			return nil
		}
		found = append(found, VideoMatch{
			Timestamp:   float64(frame) / fps,
			Confidence:  matches[0].Confidence,
			FrameNumber: frame,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// decodeFrames reads consecutive PNG images from r and hands each to fn
// with its zero-based frame number. A clean end of stream is not an error;
// fn errors abort the scan.
func decodeFrames(r io.Reader, fn func(frame int, img image.Image) error) error {
	br := bufio.NewReaderSize(r, 1<<16)
	for frame := 0; ; frame++ {
		if _, err := br.Peek(1); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return core.ErrVideoDecode.WithMessagef("stream read failed at frame %d", frame).WithCause(err)
		}
		img, err := png.Decode(br)
		if err != nil {
			return core.ErrVideoDecode.WithMessagef("failed to decode frame %d", frame).WithCause(err)
		}
		if err := fn(frame, img); err != nil {
			return err
		}
	}
}
