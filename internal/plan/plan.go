package plan

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"oats/internal/codec"
	"oats/internal/fileutil"
	"oats/internal/services"
	"oats/internal/textutil"
	"oats/internal/transcode"
)

var (
	losslessExt = map[string]struct{}{".flac": {}, ".wav": {}, ".aiff": {}, ".aif": {}, ".m4a": {}}
	lossyExt    = map[string]struct{}{".mp3": {}, ".aac": {}, ".opus": {}, ".ogg": {}, ".oga": {}, ".vorbis": {}}
)

// IsLossless reports whether path has a lossless source extension.
func IsLossless(path string) bool {
	_, ok := losslessExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// IsLossy reports whether path has a lossy extension that must not be re-encoded.
func IsLossy(path string) bool {
	_, ok := lossyExt[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Options controls planning.
type Options struct {
	OutputDir  string
	CopyExtras bool
}

// Destination is one (target, format) output tree.
type Destination struct {
	Target string
	Format codec.Descriptor
	Dir    string
	Jobs   []*transcode.Job
}

// Copy is an extra file mirrored into a destination.
type Copy struct {
	Source string
	Dest   string
}

// Skip records a source that was left out of the plan.
type Skip struct {
	Path   string
	Reason string
}

// Plan is the full set of work for a batch.
type Plan struct {
	Destinations []*Destination
	Jobs         []*transcode.Job
	Copies       []Copy
	Skipped      []Skip
}

// Build walks every target and produces jobs for each requested format.
// Job IDs are assigned sequentially from 1 in walk order. A target listed
// twice is planned once. Two targets that map to the same destination
// directory, or two sources that map to the same output file, fail the
// plan with services.ErrValidation before any job exists.
func Build(targets []string, formats []codec.Descriptor, opts Options) (*Plan, error) {
	if len(formats) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "plan", "build", "no formats", nil)
	}
	outDir, err := filepath.Abs(strings.TrimSpace(opts.OutputDir))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "plan", "resolve output dir", opts.OutputDir, err)
	}

	p := &Plan{}
	var nextID int64
	seenTargets := map[string]struct{}{}
	destOwners := map[string]string{}
	outputOwners := map[string]string{}
	for _, raw := range targets {
		target, err := filepath.Abs(strings.TrimSpace(raw))
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "plan", "resolve target", raw, err)
		}
		if _, dup := seenTargets[target]; dup {
			continue
		}
		seenTargets[target] = struct{}{}
		info, err := os.Stat(target)
		if err != nil {
			return nil, services.Wrap(services.ErrNotFound, "plan", "stat target", target, err)
		}
		if !info.IsDir() {
			return nil, services.Wrap(services.ErrValidation, "plan", "stat target", target+" is not a directory", nil)
		}

		files, err := walkSorted(target)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "plan", "walk target", target, err)
		}

		for _, format := range formats {
			dest := &Destination{
				Target: target,
				Format: format,
				Dir:    filepath.Join(outDir, DestinationName(filepath.Base(target), format.Label())),
			}
			if dest.Dir == target || strings.HasPrefix(dest.Dir+string(filepath.Separator), target+string(filepath.Separator)) {
				return nil, services.Wrap(services.ErrValidation, "plan", "destination", dest.Dir+" is inside the target", nil)
			}
			if owner, taken := destOwners[dest.Dir]; taken {
				return nil, services.Wrap(services.ErrValidation, "plan", "destination",
					fmt.Sprintf("targets %s and %s both map to %s", owner, target, dest.Dir), nil)
			}
			destOwners[dest.Dir] = target
			for _, rel := range files {
				src := filepath.Join(target, rel)
				switch {
				case IsLossy(rel):
					continue
				case IsLossless(rel):
					nextID++
					out := filepath.Join(dest.Dir, strings.TrimSuffix(rel, filepath.Ext(rel))+format.Extension())
					if err := claimOutput(outputOwners, out, src); err != nil {
						return nil, err
					}
					job := transcode.NewJob(nextID, src, format, out)
					dest.Jobs = append(dest.Jobs, job)
					p.Jobs = append(p.Jobs, job)
				case opts.CopyExtras:
					out := filepath.Join(dest.Dir, rel)
					if err := claimOutput(outputOwners, out, src); err != nil {
						return nil, err
					}
					p.Copies = append(p.Copies, Copy{Source: src, Dest: out})
				}
			}
			p.Destinations = append(p.Destinations, dest)
		}
		for _, rel := range files {
			if IsLossy(rel) {
				p.Skipped = append(p.Skipped, Skip{Path: filepath.Join(target, rel), Reason: "lossy source"})
			}
		}
	}
	return p, nil
}

// claimOutput records src as the only writer of out.
func claimOutput(owners map[string]string, out, src string) error {
	if owner, taken := owners[out]; taken {
		return services.Wrap(services.ErrValidation, "plan", "output",
			fmt.Sprintf("%s and %s both map to %s", owner, src, out), nil)
	}
	owners[out] = src
	return nil
}

// CopyExtras performs every planned copy. Existing destinations are replaced.
func (p *Plan) CopyExtras() error {
	for _, c := range p.Copies {
		if err := fileutil.CopyFile(c.Source, c.Dest); err != nil {
			return fmt.Errorf("copy %s: %w", c.Source, err)
		}
	}
	return nil
}

// walkSorted returns regular file paths relative to root in lexical order.
func walkSorted(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

var (
	trailingTag = regexp.MustCompile(`\s*\[([^\[\]]*)\]\s*$`)
	depthRate   = regexp.MustCompile(`^(16|24)-\d{2,3}$`)
)

// DestinationName names the output directory for a target and format label.
// A trailing "[...]" whose first word is a codec name is replaced.
func DestinationName(targetName, label string) string {
	name := strings.TrimSpace(targetName)
	tag := "[" + label + "]"
	if m := trailingTag.FindStringSubmatchIndex(name); m != nil {
		inner := name[m[2]:m[3]]
		if namesCodec(inner) {
			name = strings.TrimSpace(name[:m[0]])
		}
	}
	if name == "" {
		return textutil.SanitizeFileName(tag)
	}
	return textutil.SanitizeFileName(name + " " + tag)
}

func namesCodec(text string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}
	for _, c := range []codec.Codec{codec.MP3, codec.Opus, codec.Vorbis, codec.AAC, codec.FLAC, codec.ALAC, codec.WAV} {
		for _, name := range codec.Names(c) {
			words := strings.Fields(name)
			if len(words) <= len(fields) && strings.EqualFold(strings.Join(fields[:len(words)], " "), name) {
				return true
			}
		}
	}
	if len(fields) == 1 && depthRate.MatchString(fields[0]) {
		return true
	}
	return strings.EqualFold(fields[0], "V0") || strings.EqualFold(fields[0], "320")
}

// ReadListFile returns the target paths listed in path, one per line. Blank
// lines and lines starting with '#' are ignored.
func ReadListFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "plan", "open list file", path, err)
	}
	defer file.Close()

	var targets []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "plan", "read list file", path, err)
	}
	return targets, nil
}

// ExpandTargets resolves list files into targets when listFiles is set.
func ExpandTargets(args []string, listFiles bool) ([]string, error) {
	if !listFiles {
		return append([]string(nil), args...), nil
	}
	var out []string
	for _, lf := range args {
		targets, err := ReadListFile(lf)
		if err != nil {
			return nil, err
		}
		out = append(out, targets...)
	}
	return out, nil
}
