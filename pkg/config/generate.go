package config

import (
	"regexp"
	"strings"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	gotoml "github.com/pelletier/go-toml/v2"
)

const redacted = "********"

var secretKey = regexp.MustCompile(`(?i)password|secret|token`)

// GenerateConfigContent generates the configuration file content with commented values
func GenerateConfigContent() (string, error) {
	content := commentOutConfigValues(GetDefaultsContent())
	if err := ValidateContent(content); err != nil {
		return "", err
	}
	return content, nil
}

// ValidateContent checks that content parses as TOML
func ValidateContent(content string) error {
	var out map[string]interface{}
	if err := gotoml.Unmarshal([]byte(content), &out); err != nil {
		return errors.Wrap(err, errors.ErrConfigParse, "generated configuration is not valid TOML")
	}
	return nil
}

// EffectiveContent renders the merged configuration as TOML with secrets
// masked
func EffectiveContent(opts Options) (string, error) {
	k, _, err := load(opts)
	if err != nil {
		return "", err
	}
	out, err := gotoml.Marshal(redact(k.Raw()))
	if err != nil {
		return "", errors.Wrap(err, errors.ErrInternal, "failed to render configuration")
	}
	return string(out), nil
}

func redact(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case map[string]interface{}:
			out[k] = redact(val)
		case []interface{}:
			items := make([]interface{}, len(val))
			for i, item := range val {
				if sub, ok := item.(map[string]interface{}); ok {
					items[i] = redact(sub)
				} else {
					items[i] = item
				}
			}
			out[k] = items
		case string:
			if secretKey.MatchString(k) && val != "" {
				out[k] = redacted
			} else {
				out[k] = val
			}
		default:
			out[k] = v
		}
	}
	return out
}

// commentOutConfigValues takes the TOML content and comments out all non-comment, non-blank lines
// that contain configuration values (assignments)
func commentOutConfigValues(content string) string {
	lines := strings.Split(content, "\n")
	var result []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		// Keep blank lines as-is
		if trimmed == "" {
			result = append(result, line)
			continue
		}

		// Keep lines that are already comments
		if strings.HasPrefix(trimmed, "#") {
			result = append(result, line)
			continue
		}

		// Keep section headers (e.g., [deploy], [solo]) as-is
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") && !strings.Contains(trimmed, "=") {
			result = append(result, line)
			continue
		}

		// Comment out configuration value lines
		result = append(result, "# "+line)
	}

	return strings.Join(result, "\n")
}
