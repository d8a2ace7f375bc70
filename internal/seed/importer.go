package seed

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pagecms/app/internal/pages"
)

const defaultActor = "seed"

// Editor creates or updates the page stored under an exact url, usually a pages.Repository.
type Editor interface {
	Edit(ctx context.Context, url, actor string, change func(page *pages.Page)) (*pages.Page, bool, error)
}

// ImporterOptions configures an Importer.
type ImporterOptions struct {
	Editor Editor
	Logger *logrus.Logger
}

// Importer turns seed files into page edits.
type Importer struct {
	editor Editor
	logger *logrus.Logger
}

// Result summarises one seed run.
type Result struct {
	Applied int
	Skipped int
}

// NewImporter constructs an Importer.
func NewImporter(opts ImporterOptions) (*Importer, error) {
	if opts.Editor == nil {
		return nil, eris.New("page editor is required")
	}

	return &Importer{editor: opts.Editor, logger: opts.Logger}, nil
}

// ApplyFile loads path and applies one edit per entry.
func (i *Importer) ApplyFile(ctx context.Context, path string) (Result, error) {
	file, err := Load(path)
	if err != nil {
		return Result{}, err
	}

	result, err := i.Apply(ctx, file)
	if err != nil {
		return result, eris.Wrapf(err, "applying seed file: %s", path)
	}

	if i.logger != nil {
		i.logger.WithFields(logrus.Fields{
			"component": "seed.importer",
			"path":      path,
			"applied":   result.Applied,
			"skipped":   result.Skipped,
		}).Info("seed file applied")
	}

	return result, nil
}

// Apply edits the page of every entry in file. Entries are matched to stored
// pages by exact url; entries without a url are skipped.
func (i *Importer) Apply(ctx context.Context, file *File) (Result, error) {
	var result Result
	if file == nil {
		return result, nil
	}

	actor := strings.TrimSpace(file.Actor)
	if actor == "" {
		actor = defaultActor
	}

	for idx, entry := range file.Pages {
		url := strings.TrimSpace(entry.URL)
		if url == "" {
			result.Skipped++
			if i.logger != nil {
				i.logger.WithFields(logrus.Fields{"component": "seed.importer", "entry": idx}).Warn("skipping seed entry without url")
			}
			continue
		}

		content, err := cleanContent(entry.Content)
		if err != nil {
			return result, eris.Wrapf(err, "cleaning content for %s", url)
		}

		params := entry.Parameters
		_, _, err = i.editor.Edit(ctx, url, actor, func(page *pages.Page) {
			page.Content = content
			page.Parameters = make([]pages.Parameter, 0, len(params))
			for _, param := range params {
				page.Parameters = append(page.Parameters, pages.Parameter{Name: param.Name, Value: param.Value})
			}
		})
		if err != nil {
			return result, eris.Wrapf(err, "applying seed entry %s", url)
		}
		result.Applied++
	}

	return result, nil
}
