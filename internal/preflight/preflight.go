package preflight

import (
	"context"
	"strings"

	"scribe/internal/config"
	"scribe/internal/stage"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// StageHealth reports readiness of the registered stage executors.
type StageHealth interface {
	Health(ctx context.Context) []stage.Health
}

// RunAll executes all applicable local checks for the given config. Remote
// probes are left to CheckStages so a plain run does not pay for them.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	for _, dep := range CheckSystemDeps(cfg) {
		results = append(results, Result{Name: dep.Name, Passed: dep.Available, Detail: depDetail(dep.Command, dep.Detail)})
	}

	results = append(results, CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir))
	results = append(results, CheckDiskSpace("Work directory free space", cfg.Paths.WorkDir, MinFreeBytes))
	if cfg.Intake.ProcessVideos {
		results = append(results, CheckDirectoryAccess("Video intake", cfg.Intake.VideoDir))
	}
	if cfg.Intake.ProcessLocalAudio {
		results = append(results, CheckDirectoryAccess("Audio intake", cfg.Intake.AudioDir))
	}

	results = append(results, CheckSecret("Gemini API key", cfg.Gemini.APIKey))
	if cfg.Summary.Provider == config.SummaryProviderOpenAI {
		results = append(results, CheckSecret("OpenAI API key", cfg.OpenAI.APIKey))
	}
	results = append(results, CheckSummaryPrompt(cfg))
	if cfg.PublishingEnabled() {
		results = append(results, CheckSecret("HackMD API token", cfg.HackMD.APIToken))
	}
	if cfg.DriveRequired() {
		results = append(results, CheckCredentialsFile("Drive credentials", cfg.Drive.CredentialsFile))
	}

	return results
}

// CheckStages converts executor health into preflight results.
func CheckStages(ctx context.Context, source StageHealth) []Result {
	if source == nil {
		return nil
	}
	health := source.Health(ctx)
	results := make([]Result, 0, len(health))
	for _, h := range health {
		detail := strings.TrimSpace(h.Detail)
		if detail == "" && h.Ready {
			detail = "ready"
		}
		results = append(results, Result{Name: "Stage " + h.Name, Passed: h.Ready, Detail: detail})
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func depDetail(command, detail string) string {
	if detail != "" {
		return detail
	}
	return command
}
