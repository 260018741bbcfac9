package transcribe

import (
	"context"
	"fmt"
	"os/exec"
)

// extractAudio converts a video file to stereo 44.1kHz 160kbps MP3. ffmpeg
// is killed when ctx ends.
func extractAudio(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-y",
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-ac", "2",
		"-ab", "160k",
		"-ar", "44100",
		outputPath,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg extract audio: %w", ctx.Err())
		}
		return fmt.Errorf("ffmpeg extract audio: %w\n%s", err, string(out))
	}
	return nil
}
