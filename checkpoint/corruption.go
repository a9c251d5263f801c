package checkpoint

import "github.com/tidwall/gjson"

// requiredEnvelopeFields are checked for presence before any JSON unmarshal
// is attempted, so a malformed envelope is classified precisely (MissingFields
// or InvalidDataTypes) rather than falling through to a generic InvalidJson.
var requiredEnvelopeFields = []string{"id", "job_id", "schema_version", "checksum", "size_bytes", "status", "payload"}

// detectStructural runs the presence and type-consistency checks of spec
// §4.8's corruption detector directly against raw bytes via gjson, ahead of
// any struct unmarshal. Returns nil when the envelope looks structurally
// sound (further corruption classes are still checked downstream in Decode).
func detectStructural(envelopeJSON []byte) *CorruptionReport {
	if !gjson.ValidBytes(envelopeJSON) {
		return &CorruptionReport{
			CorruptionType:   CorruptionInvalidJson,
			Severity:         SeverityHigh,
			Details:          "envelope is not valid JSON",
			RecoveryPossible: true,
			RecoveryActions:  recoveryActionsFor(CorruptionInvalidJson),
		}
	}

	parsed := gjson.ParseBytes(envelopeJSON)
	id := parsed.Get("id").String()

	var missing []string
	for _, field := range requiredEnvelopeFields {
		if !parsed.Get(field).Exists() {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return &CorruptionReport{
			CheckpointID:     id,
			CorruptionType:   CorruptionMissingFields,
			Severity:         SeverityHigh,
			Details:          "missing required envelope fields: " + joinStrings(missing),
			RecoveryPossible: true,
			RecoveryActions:  recoveryActionsFor(CorruptionMissingFields),
		}
	}

	type typeCheck struct {
		path string
		want gjson.Type
	}
	checks := []typeCheck{
		{"id", gjson.String},
		{"job_id", gjson.String},
		{"schema_version", gjson.String},
		{"checksum", gjson.String},
		{"size_bytes", gjson.Number},
		{"payload", gjson.String},
	}
	for _, c := range checks {
		if got := parsed.Get(c.path).Type; got != c.want {
			return &CorruptionReport{
				CheckpointID:     id,
				CorruptionType:   CorruptionInvalidDataTypes,
				Severity:         SeverityHigh,
				Details:          "field " + c.path + " has an unexpected JSON type",
				RecoveryPossible: true,
				RecoveryActions:  recoveryActionsFor(CorruptionInvalidDataTypes),
			}
		}
	}

	if v := parsed.Get("child_checkpoint_ids"); v.Exists() && !v.IsArray() {
		return &CorruptionReport{
			CheckpointID:     id,
			CorruptionType:   CorruptionInvalidDataTypes,
			Severity:         SeverityHigh,
			Details:          "child_checkpoint_ids is present but not an array",
			RecoveryPossible: true,
			RecoveryActions:  recoveryActionsFor(CorruptionInvalidDataTypes),
		}
	}

	return nil
}

func joinStrings(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ", "
		}
		out += s
	}
	return out
}
