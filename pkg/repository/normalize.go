package repository

import (
	"path/filepath"
	"slices"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/logging"
	"github.com/arthur-debert/solodeploy/pkg/scm"
)

// Normalize applies defaults to raw and validates the result. It fails on
// the first descriptor that cannot be completed.
func Normalize(raw []RawDescriptor, defaults GroupDefaults) ([]Descriptor, error) {
	logger := logging.GetLogger("repository")
	seen := map[string]bool{}
	out := make([]Descriptor, 0, len(raw))

	for i, r := range raw {
		if r.Name == "" {
			return nil, errors.Newf(errors.ErrDescriptorInvalid, "%s repository #%d has no name", defaults.Group, i+1).
				WithDetail("group", string(defaults.Group))
		}
		if seen[r.Name] {
			return nil, errors.Newf(errors.ErrDescriptorInvalid, "%s repository %q declared twice", defaults.Group, r.Name).
				WithDetail("group", string(defaults.Group)).
				WithDetail("descriptor", r.Name)
		}
		seen[r.Name] = true

		d := Descriptor{
			Name:       r.Name,
			Group:      defaults.Group,
			Kind:       firstNonEmpty(r.Kind, defaults.Kind, scm.KindNone),
			Revision:   firstNonEmpty(r.Revision, defaults.Revision),
			EntityName: r.EntityName,
		}

		if !scm.Known(d.Kind) {
			return nil, errors.Newf(errors.ErrDescriptorInvalid, "%s repository %q has unknown kind %q", defaults.Group, r.Name, d.Kind).
				WithDetail("descriptor", r.Name).
				WithDetail("kind", d.Kind)
		}

		d.Location = firstNonEmpty(r.Location, defaults.Location)
		if d.Location == "" {
			if d.Kind != scm.KindNone {
				return nil, errors.Newf(errors.ErrDescriptorInvalid, "%s repository %q (%s) has no location", defaults.Group, r.Name, d.Kind).
					WithDetail("descriptor", r.Name).
					WithDetail("kind", d.Kind)
			}
			d.Location = "."
		}

		switch {
		case len(r.Subdirs) > 0:
			d.Subdirs = slices.Clone(r.Subdirs)
		case r.LegacySubdir != "":
			logger.Info().Str("descriptor", r.Name).
				Msgf("%s key in a repository entry is deprecated, use subdirs", defaults.Group.Plural())
			d.Subdirs = []string{r.LegacySubdir}
		case defaults.Subdir != "":
			d.Subdirs = []string{defaults.Subdir}
		default:
			d.Subdirs = []string{WholeTree}
		}

		switch {
		case r.Exclude != nil:
			d.Exclude = slices.Clone(r.Exclude)
		case r.LegacyExclude != nil:
			logger.Info().Str("descriptor", r.Name).
				Msgf("%s_exclude key in a repository entry is deprecated, use exclude", defaults.Group.Plural())
			d.Exclude = slices.Clone(r.LegacyExclude)
		case defaults.Exclude != nil:
			d.Exclude = slices.Clone(defaults.Exclude)
		default:
			d.Exclude = slices.Clone(DefaultExclude)
		}

		if d.Kind != scm.KindNone {
			d.CachePath = filepath.Join(defaults.CacheRoot, d.Name)
		}

		out = append(out, d)
	}

	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
