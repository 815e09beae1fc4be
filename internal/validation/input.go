package validation

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/baticonnect/artisan-backend/internal/pkg/apperror"
)

// Input limits.
const (
	MinFullNameLength = 2
	MaxFullNameLength = 100

	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt input limit

	MinJobTitleLength       = 3
	MaxJobTitleLength       = 200
	MinJobDescriptionLength = 10
	MaxJobDescriptionLength = 5000

	MinMilestoneDescriptionLength = 3
	MaxMilestoneDescriptionLength = 1000

	MinDisputeDescriptionLength = 10
	MaxDisputeDescriptionLength = 5000
	MaxEvidenceURLs             = 10

	MinMessageLength = 1
	MaxMessageLength = 5000

	MaxZoneLength = 100
)

// phoneRegex accepts international format with an optional plus, 8 to 15
// digits.
var phoneRegex = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

// ValidateLength checks the rune length of a string field.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return apperror.Newf(apperror.ErrCodeValidation, "%s must be at least %d characters", fieldName, min)
	}
	if max > 0 && length > max {
		return apperror.Newf(apperror.ErrCodeValidation, "%s must be at most %d characters", fieldName, max)
	}
	return nil
}

// ValidatePhone checks a phone number in international format.
func ValidatePhone(phone string) error {
	if phone == "" {
		return apperror.New(apperror.ErrCodeValidation, "phone number is required")
	}

	phone = strings.TrimSpace(phone)
	if !phoneRegex.MatchString(phone) {
		return apperror.New(apperror.ErrCodeValidation, "phone number must be in international format")
	}
	return nil
}

// ValidatePassword checks password length bounds.
func ValidatePassword(password string) error {
	if password == "" {
		return apperror.New(apperror.ErrCodeValidation, "password is required")
	}
	if len(password) < MinPasswordLength {
		return apperror.Newf(apperror.ErrCodeValidation, "password must be at least %d characters", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return apperror.Newf(apperror.ErrCodeValidation, "password must be at most %d characters", MaxPasswordLength)
	}
	return nil
}

// ValidateFullName checks a user's display name.
func ValidateFullName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperror.New(apperror.ErrCodeValidation, "full name is required")
	}
	return ValidateLength("full name", strings.TrimSpace(name), MinFullNameLength, MaxFullNameLength)
}

// ValidateNonEmpty rejects blank strings.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperror.Newf(apperror.ErrCodeValidation, "%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateJobTitle checks a job posting title.
func ValidateJobTitle(title string) error {
	if err := ValidateNonEmpty("job title", title); err != nil {
		return err
	}
	return ValidateLength("job title", strings.TrimSpace(title), MinJobTitleLength, MaxJobTitleLength)
}

// ValidateJobDescription checks a job posting description.
func ValidateJobDescription(description string) error {
	if err := ValidateNonEmpty("job description", description); err != nil {
		return err
	}
	return ValidateLength("job description", strings.TrimSpace(description), MinJobDescriptionLength, MaxJobDescriptionLength)
}

// ValidateMilestoneDescription checks a milestone description.
func ValidateMilestoneDescription(description string) error {
	if err := ValidateNonEmpty("milestone description", description); err != nil {
		return err
	}
	return ValidateLength("milestone description", strings.TrimSpace(description),
		MinMilestoneDescriptionLength, MaxMilestoneDescriptionLength)
}

// ValidateDisputeDescription checks the free-text account of a dispute.
func ValidateDisputeDescription(description string) error {
	if err := ValidateNonEmpty("dispute description", description); err != nil {
		return err
	}
	return ValidateLength("dispute description", strings.TrimSpace(description),
		MinDisputeDescriptionLength, MaxDisputeDescriptionLength)
}

// ValidateEvidenceURLs checks the evidence attachment links of a dispute.
func ValidateEvidenceURLs(urls []string) error {
	if len(urls) > MaxEvidenceURLs {
		return apperror.Newf(apperror.ErrCodeValidation, "at most %d evidence links are allowed", MaxEvidenceURLs)
	}
	for _, raw := range urls {
		if err := ValidateURL("evidence link", raw); err != nil {
			return err
		}
	}
	return nil
}

// ValidateURL checks that a link is an absolute http(s) URL.
func ValidateURL(fieldName, raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return apperror.Newf(apperror.ErrCodeValidation, "%s is not a valid URL", fieldName)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return apperror.Newf(apperror.ErrCodeValidation, "%s must start with http:// or https://", fieldName)
	}
	if parsed.Host == "" {
		return apperror.Newf(apperror.ErrCodeValidation, "%s must contain a host", fieldName)
	}
	return nil
}

// ValidateMessageContent checks a mediation message body.
func ValidateMessageContent(content string) error {
	if err := ValidateNonEmpty("message", content); err != nil {
		return err
	}
	return ValidateLength("message", strings.TrimSpace(content), MinMessageLength, MaxMessageLength)
}

// ValidateZone checks an optional geographic zone label.
func ValidateZone(zone *string) error {
	if zone == nil || *zone == "" {
		return nil
	}
	return ValidateLength("zone", strings.TrimSpace(*zone), 0, MaxZoneLength)
}
