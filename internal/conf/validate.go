// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	if err := validateSourceSettings(&settings.Source); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateTargetSettings(&settings.Target); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if err := validateSyncSettings(&settings.Sync); err != nil {
		ve.Errors = append(ve.Errors, err.Error())
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

// validateSourceSettings validates the reach source client settings
func validateSourceSettings(settings *SourceSettings) error {
	var errs []string

	if settings.BaseURL == "" {
		errs = append(errs, "source base URL must not be empty")
	} else if err := validateURL(settings.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("invalid source base URL: %v", err))
	}

	if settings.Timeout <= 0 {
		errs = append(errs, "source timeout must be greater than zero")
	}

	if settings.MaxRetries < 0 {
		errs = append(errs, "source max retries must not be negative")
	}

	if settings.RequestsPerSec <= 0 {
		errs = append(errs, "source requests per second must be greater than zero")
	}

	if len(errs) > 0 {
		return fmt.Errorf("source settings errors: %v", strings.Join(errs, "; "))
	}
	return nil
}

// validateTargetSettings validates the feature service settings
func validateTargetSettings(settings *TargetSettings) error {
	var errs []string

	if settings.Line.URL == "" {
		errs = append(errs, "target line layer URL must not be empty")
	} else if err := validateURL(settings.Line.URL); err != nil {
		errs = append(errs, fmt.Sprintf("invalid line layer URL: %v", err))
	}

	if settings.Centroid.URL == "" {
		errs = append(errs, "target centroid layer URL must not be empty")
	} else if err := validateURL(settings.Centroid.URL); err != nil {
		errs = append(errs, fmt.Sprintf("invalid centroid layer URL: %v", err))
	}

	if settings.Timeout <= 0 {
		errs = append(errs, "target timeout must be greater than zero")
	}

	if settings.SchemaTTL <= 0 {
		errs = append(errs, "target schema TTL must be greater than zero")
	}

	if len(errs) > 0 {
		return fmt.Errorf("target settings errors: %v", strings.Join(errs, "; "))
	}
	return nil
}

// validateSyncSettings validates the batch orchestrator settings
func validateSyncSettings(settings *SyncSettings) error {
	var errs []string

	if settings.Concurrency < 1 {
		errs = append(errs, "sync concurrency must be at least 1")
	}
	if settings.Concurrency > 256 {
		errs = append(errs, "sync concurrency must not exceed 256")
	}

	for _, u := range settings.NotifyURLs {
		if strings.TrimSpace(u) == "" {
			errs = append(errs, "notify URLs must not be blank")
			break
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("sync settings errors: %v", strings.Join(errs, "; "))
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
