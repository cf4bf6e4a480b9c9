package logging

import "strings"

// Subject names what a console line is about: the batch, the job and its
// stage, and the output format.
type Subject struct {
	Batch  string
	Job    string
	Stage  string
	Format string
}

// String renders e.g. "Batch 0a1b2c3d · Job #4 (encode) · MP3 CBR 320".
// Batch IDs are shortened to eight characters.
func (s Subject) String() string {
	batch := strings.TrimSpace(s.Batch)
	job := strings.TrimSpace(s.Job)
	stage := strings.TrimSpace(s.Stage)
	format := strings.TrimSpace(s.Format)

	parts := make([]string, 0, 3)
	if batch != "" {
		if len(batch) > 8 {
			batch = batch[:8]
		}
		parts = append(parts, "Batch "+batch)
	}
	switch {
	case job != "" && stage != "":
		parts = append(parts, "Job #"+job+" ("+stage+")")
	case job != "":
		parts = append(parts, "Job #"+job)
	case stage != "":
		parts = append(parts, stage)
	}
	if format != "" {
		parts = append(parts, format)
	}
	return strings.Join(parts, " · ")
}
