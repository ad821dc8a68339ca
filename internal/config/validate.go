package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateIntake(); err != nil {
		return err
	}
	if err := c.validateGemini(); err != nil {
		return err
	}
	if err := c.validateSummary(); err != nil {
		return err
	}
	if err := c.validateHackMD(); err != nil {
		return err
	}
	if err := c.validateDrive(); err != nil {
		return err
	}
	if err := c.validateEmail(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateIntake() error {
	if c.Intake.ProcessVideos && strings.TrimSpace(c.Intake.VideoDir) == "" {
		return errors.New("intake.video_dir must be set when intake.process_videos is true")
	}
	if c.Intake.ProcessLocalAudio && strings.TrimSpace(c.Intake.AudioDir) == "" {
		return errors.New("intake.audio_dir must be set when intake.process_local_audio is true")
	}
	if c.Intake.ProcessDrive && c.Drive.InboxFolderID == "" {
		return errors.New("drive.inbox_folder_id must be set when intake.process_drive is true")
	}
	return nil
}

func (c *Config) validateGemini() error {
	if c.Gemini.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("gemini.api_key is required. Set GEMINI_API_KEY env var or edit %s (create with 'scribe config init')", defaultPath)
	}
	if c.Gemini.Temperature < 0 || c.Gemini.Temperature > 2 {
		return errors.New("gemini.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateSummary() error {
	switch c.Summary.Provider {
	case SummaryProviderGemini:
	case SummaryProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			return errors.New("openai.api_key must be set when summary.provider is \"openai\" (or set OPENAI_API_KEY)")
		}
	default:
		return fmt.Errorf("summary.provider: unsupported value %q (want gemini or openai)", c.Summary.Provider)
	}
	if c.Summary.Temperature < 0 || c.Summary.Temperature > 2 {
		return errors.New("summary.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateHackMD() error {
	if !c.HackMD.Enabled {
		return nil
	}
	if c.HackMD.APIToken == "" {
		return errors.New("hackmd.api_token must be set when hackmd.enabled is true (or set HACKMD_API_TOKEN)")
	}
	return nil
}

func (c *Config) validateDrive() error {
	if c.DriveRequired() && c.Drive.CredentialsFile == "" {
		return errors.New("drive.credentials_file must be set when Drive intake, sync or prompt_doc_id is used (or set GOOGLE_APPLICATION_CREDENTIALS)")
	}
	if c.Drive.SyncEnabled && c.Drive.OutputFolderID == "" {
		return errors.New("drive.output_folder_id must be set when drive.sync_enabled is true")
	}
	if c.Intake.ProcessDrive && c.Drive.TranscribedFolderID == "" {
		return errors.New("drive.transcribed_folder_id must be set when intake.process_drive is true")
	}
	return nil
}

func (c *Config) validateEmail() error {
	if !c.Email.Enabled {
		return nil
	}
	if c.Email.Username == "" {
		return errors.New("email.username must be set when email.enabled is true")
	}
	if c.Email.Password == "" {
		return errors.New("email.password must be set when email.enabled is true (or set SMTP_PASSWORD)")
	}
	if len(c.Email.To) == 0 {
		return errors.New("email.to must include at least one recipient when email.enabled is true")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"audio.chunk_seconds":           c.Audio.ChunkSeconds,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
		"workflow.stage_timeout":        c.Workflow.StageTimeout,
		"workflow.max_parallel_items":   c.Workflow.MaxParallelItems,
	}); err != nil {
		return err
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
