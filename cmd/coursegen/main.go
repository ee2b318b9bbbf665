package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/lumenlearn/coursegen-backend/internal/app"
	"github.com/lumenlearn/coursegen-backend/internal/audit"
	"github.com/lumenlearn/coursegen-backend/internal/domain"
	"github.com/lumenlearn/coursegen-backend/internal/platform/logger"
)

type report struct {
	Chapters  []domain.ChapterBoundary `json:"chapters"`
	Questions [][]domain.Question      `json:"questions,omitempty"`
	Audit     *audit.CourseAudit       `json:"audit,omitempty"`
}

func main() {
	sourcePath := flag.String("source", "", "path to the course source text")
	titlesPath := flag.String("titles", "", "optional newline-separated chapter titles")
	chapterCount := flag.Int("chapters", 5, "chapter count when no titles are given")
	mode := flag.String("mode", "generate", "segment | generate | audit")
	outPath := flag.String("out", "", "write the JSON report here instead of stdout")
	flag.Parse()

	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *sourcePath == "" {
		log.Error("missing required flag", "flag", "-source")
		os.Exit(1)
	}
	raw, err := os.ReadFile(*sourcePath)
	if err != nil {
		log.Error("read source", "error", err)
		os.Exit(1)
	}
	source := string(raw)

	log.Info("Wiring application components...")
	cfg := app.LoadConfig()
	a, err := app.New(log, cfg)
	if err != nil {
		log.Error("app init failed", "error", err)
		os.Exit(1)
	}

	metas, err := chapterMetas(a, source, *titlesPath, *chapterCount)
	if err != nil {
		log.Error("chapter outline failed", "error", err)
		os.Exit(1)
	}

	log.Info("Segmenting source text...", "chapters", len(metas))
	bounds, err := a.Segmenter.ExtractChapterText(source, metas)
	if err != nil {
		log.Error("segmentation failed", "error", err)
		os.Exit(1)
	}

	rep := report{Chapters: bounds}
	if *mode != "segment" {
		log.Info("Generating chapter questions...", "wave_size", cfg.WaveSize)
		results, err := a.Pipeline.GenerateCourseQuestions(context.Background(), bounds)
		if err != nil {
			log.Error("generation failed", "error", err)
			os.Exit(1)
		}
		rep.Questions = make([][]domain.Question, len(results))
		inputs := make([]audit.ChapterInput, len(results))
		for i, r := range results {
			rep.Questions[i] = r.Questions
			inputs[i] = audit.ChapterInput{
				ChapterIndex: r.ChapterIndex,
				Title:        bounds[i].Title,
				SourceText:   bounds[i].Text,
				Questions:    r.Questions,
			}
		}
		if *mode == "audit" {
			log.Info("Auditing generated content...")
			courseAudit := a.Auditor.AuditCourse(inputs)
			rep.Audit = &courseAudit
		}
	}

	if err := emit(rep, *outPath); err != nil {
		log.Error("write report", "error", err)
		os.Exit(1)
	}
}

func chapterMetas(a *app.App, source, titlesPath string, count int) ([]domain.ChapterMeta, error) {
	if titlesPath == "" {
		return a.Fallback.Chapters(source, count), nil
	}
	raw, err := os.ReadFile(titlesPath)
	if err != nil {
		return nil, err
	}
	var metas []domain.ChapterMeta
	for _, line := range strings.Split(string(raw), "\n") {
		title := strings.TrimSpace(line)
		if title == "" {
			continue
		}
		metas = append(metas, domain.ChapterMeta{Index: len(metas) + 1, Title: title})
	}
	if len(metas) == 0 {
		return nil, fmt.Errorf("no chapter titles in %s", titlesPath)
	}
	return metas, nil
}

func emit(rep report, outPath string) error {
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if outPath == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(outPath, data, 0o644)
}
