package openstackcli

import (
	"encoding/csv"
	"strings"

	"github.com/cloudseal/secallow/pkg/provider"
	"github.com/rs/zerolog/log"
)

// Column positions of `security group rule list --long -f csv`.
const (
	colID        = 0
	colIPRange   = 3
	colDirection = 5
	minColumns   = 6
)

// parseRuleList turns CSV output into rules. Header rows, short rows and
// anything else that does not look like a rule are skipped rather than
// trusted; CLI output has grown columns before and may again.
func parseRuleList(out string) []provider.Rule {
	reader := csv.NewReader(strings.NewReader(out))
	reader.FieldsPerRecord = -1

	var rules []provider.Rule
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		if len(record) < minColumns {
			log.Debug().Msgf("Skipping short row in rule listing: %v", record)
			continue
		}
		if strings.EqualFold(record[colID], "ID") {
			// header row
			continue
		}

		direction := provider.Direction(strings.ToLower(strings.TrimSpace(record[colDirection])))
		if direction != provider.DirectionIngress && direction != provider.DirectionEgress {
			log.Debug().Msgf("Skipping non-rule row in rule listing: %v", record)
			continue
		}

		rules = append(rules, provider.Rule{
			ID:          strings.TrimSpace(record[colID]),
			SourceRange: strings.TrimSpace(record[colIPRange]),
			Direction:   direction,
		})
	}
	return rules
}
