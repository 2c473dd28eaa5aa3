package presenter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"moobot/app/config"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const (
	RowSize      = 4
	NoMatchText  = "No matching cows found for your query."
	imageExt     = ".jpg"
	resultPrefix = "Cows based on your query: "
	missingLabel = "Image not found: "
)

type Result struct {
	Text string
	// Images maps cow id to image path for ids whose file exists.
	Images map[string]string
	// Missing lists ids without an image, in result order.
	Missing []string
	// Rows groups the ids with images for display.
	Rows [][]string
}

type Service struct {
	dir string
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(cfg.Images.Dir), nil
}

func NewService(dir string) *Service {
	return &Service{dir: dir}
}

func (s *Service) Dir() string {
	return s.dir
}

// ImagePath returns the image path for a cow id if the file exists.
func (s *Service) ImagePath(id string) (string, bool) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", false
	}

	path := filepath.Join(s.dir, id+imageExt)

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}

	return path, true
}

func (s *Service) Present(ids []string) Result {
	if len(ids) == 0 {
		return Result{
			Text:   NoMatchText,
			Images: map[string]string{},
		}
	}

	images := make(map[string]string, len(ids))
	for _, id := range ids {
		if path, ok := s.ImagePath(id); ok {
			images[id] = path
		}
	}

	found := pie.Filter(ids, func(id string) bool {
		_, ok := images[id]
		return ok
	})
	missing := pie.Filter(ids, func(id string) bool {
		_, ok := images[id]
		return !ok
	})

	text := resultPrefix + strings.Join(ids, ", ")
	if len(missing) > 0 {
		text += fmt.Sprintf("\n%s%s", missingLabel, strings.Join(missing, ", "))
	}

	return Result{
		Text:    text,
		Images:  images,
		Missing: missing,
		Rows:    lo.Chunk(found, RowSize),
	}
}
