package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/keagan/factreel/internal/editor"
	"github.com/keagan/factreel/internal/facts"
	"github.com/keagan/factreel/internal/logging"
	"github.com/keagan/factreel/internal/script"
	"github.com/keagan/factreel/internal/selection"
	"github.com/keagan/factreel/pkg/util"
)

// Document fetches the article, extracts facts and writes queries and a
// script for each. The stored document is replaced, unless the fetch or the
// extraction fails: then an empty document is returned and nothing is saved.
func (p *Pipeline) Document(ctx context.Context, url string) (*facts.Document, error) {
	log := p.log(ctx)

	doc := facts.NewDocument(url)

	text, err := p.deps.Article.Fetch(ctx, url)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		log.Warn().Err(err).Str("article", url).Msg("article fetch failed, no facts extracted; stored document left unchanged")
		return doc, nil
	}

	source := text
	if p.deps.Index != nil {
		if _, err := p.deps.Index.Add(ctx, url, text); err != nil {
			log.Warn().Err(err).Msg("article indexing failed, using full text")
		} else if narrowed, err := p.deps.Index.Context(ctx, url, indexQuery, p.opts.IndexTopK); err != nil {
			log.Warn().Err(err).Msg("index query failed, using full text")
		} else if narrowed != "" {
			source = narrowed
		}
	}

	found, err := p.deps.Planner.Facts(ctx, source, p.opts.FactCount)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		log.Warn().Err(err).Str("article", url).Msg("fact extraction failed, stored document left unchanged")
		return doc, nil
	}

	for i, fact := range found {
		key := facts.Key(i + 1)
		rec := facts.Record{Text: fact}

		if rec.YouTubeQueries, err = p.deps.Planner.Queries(ctx, fact); err != nil {
			log.Warn().Err(err).Str("fact", key).Msg("query generation failed")
		}
		if rec.VideoScript, err = p.deps.Planner.Script(ctx, fact); err != nil {
			log.Warn().Err(err).Str("fact", key).Msg("script generation failed")
		}

		doc.Facts[key] = rec
		log.Info().Str("fact", key).Int("queries", len(rec.YouTubeQueries)).Msg("fact processed")
	}

	if err := p.repo.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save document: %w", err)
	}
	return doc, nil
}

// Footage downloads the videos found for the fact's queries
func (p *Pipeline) Footage(ctx context.Context, key string) (facts.Record, error) {
	rec, err := p.repo.Load(ctx, key)
	if err != nil {
		return rec, err
	}
	if len(rec.YouTubeQueries) == 0 {
		return rec, fmt.Errorf("%s has no search queries", key)
	}

	downloads, err := p.deps.Footage.Collect(ctx, rec.YouTubeQueries, p.opts.PerQuery, p.opts.MaxDuration, p.Layout(key).VideosDir())
	if err != nil {
		return rec, err
	}

	rec = rec.Clone()
	rec.VideoTitles = rec.VideoTitles[:0]
	rec.VideoPaths = rec.VideoPaths[:0]
	for _, d := range downloads {
		rec.VideoTitles = append(rec.VideoTitles, d.Title)
		rec.VideoPaths = append(rec.VideoPaths, d.Path)
	}

	if err := p.repo.Save(ctx, key, rec); err != nil {
		return rec, fmt.Errorf("failed to save %s: %w", key, err)
	}
	return rec, nil
}

// Plan splits the script into sections, extracts keywords when enabled and
// matches every section to source videos.
func (p *Pipeline) Plan(ctx context.Context, rec facts.Record) (facts.Record, error) {
	log := p.log(ctx)
	if len(script.SpokenLines(rec.VideoScript)) == 0 {
		return rec, fmt.Errorf("script has no spoken lines")
	}

	out := rec.Clone()
	out.ScriptSections = script.Split(rec.VideoScript, p.opts.Sections)
	out.KeywordsSections = make(map[string][]string, len(out.ScriptSections))
	out.BestVideoIdx = make(map[string][]int, len(out.ScriptSections))

	for i, section := range out.ScriptSections {
		sk := facts.SectionKey(i)

		if section == "" {
			out.KeywordsSections[sk] = nil
			out.BestVideoIdx[sk] = nil
			continue
		}

		var kw []string
		if p.opts.UseKeywords {
			var err error
			if kw, err = p.deps.Planner.Keywords(ctx, section, p.opts.KeywordCount); err != nil {
				log.Warn().Err(err).Int("section", i).Msg("keyword extraction failed")
			}
		}
		out.KeywordsSections[sk] = kw
		out.BestVideoIdx[sk] = p.deps.Planner.Match(ctx, section, out.VideoTitles, p.opts.MatchesPerSection)

		log.Debug().Int("section", i).Ints("videos", out.BestVideoIdx[sk]).Strs("keywords", kw).Msg("section planned")
	}

	if err := out.Validate(); err != nil {
		return rec, err
	}
	return out, nil
}

// Selection plans the sections and extracts candidate clips for every
// (section, matched video) pair. The plan is saved before extraction starts.
func (p *Pipeline) Selection(ctx context.Context, key string) (facts.Record, SelectionReport, error) {
	log := p.log(ctx)
	report := SelectionReport{Clips: make(map[int]int)}

	rec, err := p.repo.Load(ctx, key)
	if err != nil {
		return rec, report, err
	}
	if len(rec.VideoPaths) == 0 {
		return rec, report, fmt.Errorf("%s has no downloaded videos", key)
	}

	rec, err = p.Plan(ctx, rec)
	if err != nil {
		return rec, report, fmt.Errorf("failed to plan %s: %w", key, err)
	}
	if err := p.repo.Save(ctx, key, rec); err != nil {
		return rec, report, fmt.Errorf("failed to save %s: %w", key, err)
	}

	layout := p.Layout(key)
	if err := util.RecreateDir(layout.ClipsRoot()); err != nil {
		return rec, report, err
	}

	for i, section := range rec.ScriptSections {
		if section == "" {
			log.Warn().Int("section", i).Msg("section has no narration, skipping selection")
			continue
		}

		keywords := rec.Keywords(i)
		if p.opts.SentenceQuestions {
			keywords = nil
		}
		question, err := p.deps.Planner.RelevanceQuestion(section, keywords)
		if err != nil {
			return rec, report, err
		}

		for _, idx := range rec.Matches(i) {
			if idx < 0 || idx >= len(rec.VideoPaths) {
				continue
			}
			video := rec.VideoPaths[idx]
			stem := util.Stem(video)
			jobLog := logging.WithJob(*log, i, stem)

			clips, err := p.deps.Strategy.Select(ctx, selection.Job{
				Video:     video,
				Question:  question,
				FramesDir: layout.FramesDir(i, stem),
				ClipsDir:  layout.ClipsDir(i, stem),
			})
			report.Jobs++
			switch {
			case ctx.Err() != nil:
				return rec, report, ctx.Err()
			case errors.Is(err, selection.ErrPartition):
				return rec, report, err
			case err != nil:
				jobLog.Warn().Err(err).Msg("clip selection failed")
				continue
			}

			report.Clips[i] += len(clips)
			jobLog.Info().Int("clips", len(clips)).Msg("clips selected")
		}
	}

	log.Info().Int("jobs", report.Jobs).Int("clips", report.Total()).
		Any("per_section", report.Clips).
		Msg("selection complete")
	return rec, report, nil
}

// Narration renders the script to audio/audio.wav
func (p *Pipeline) Narration(ctx context.Context, key string) error {
	rec, err := p.repo.Load(ctx, key)
	if err != nil {
		return err
	}
	return p.deps.Narrator.Narrate(ctx, rec.VideoScript, p.Layout(key).AudioPath())
}

// Edit assembles the final shorts from the selected clips and narration
func (p *Pipeline) Edit(ctx context.Context, key string) ([]string, error) {
	rec, err := p.repo.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(rec.ScriptSections) == 0 {
		return nil, fmt.Errorf("%s has no script sections, run selection first", key)
	}

	layout := p.Layout(key)
	clips := make([][]string, len(rec.ScriptSections))
	for i := range rec.ScriptSections {
		if clips[i], err = layout.SectionClips(i); err != nil {
			return nil, err
		}
	}

	return p.deps.Editor.Assemble(ctx, editor.Input{
		Sections: rec.ScriptSections,
		Clips:    clips,
		Audio:    layout.AudioPath(),
		OutDir:   layout.FinalDir(),
	})
}
