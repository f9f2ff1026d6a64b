package scan

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

type probeResult struct {
	Duration float64 // seconds
	Bitrate  int     // kbps
}

type probeFunc func(ctx context.Context, ffprobePath, path string) (probeResult, error)

// ffprobe reads container duration and overall bitrate.
func ffprobe(ctx context.Context, ffprobePath, path string) (probeResult, error) {
	cmd := exec.CommandContext(ctx, ffprobePath, "-v", "quiet", "-print_format", "json", "-show_format", path)
	out, err := cmd.Output()
	if err != nil {
		return probeResult{}, fmt.Errorf("ffprobe: %w", err)
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (probeResult, error) {
	var result struct {
		Format struct {
			Duration string `json:"duration"`
			BitRate  string `json:"bit_rate"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &result); err != nil {
		return probeResult{}, fmt.Errorf("decode ffprobe output: %w", err)
	}

	var res probeResult
	if result.Format.Duration != "" {
		secs, err := strconv.ParseFloat(result.Format.Duration, 64)
		if err != nil {
			return probeResult{}, fmt.Errorf("parse duration %q: %w", result.Format.Duration, err)
		}
		res.Duration = secs
	}
	if result.Format.BitRate != "" {
		bps, err := strconv.Atoi(result.Format.BitRate)
		if err != nil {
			return probeResult{}, fmt.Errorf("parse bit_rate %q: %w", result.Format.BitRate, err)
		}
		res.Bitrate = (bps + 500) / 1000
	}
	return res, nil
}
