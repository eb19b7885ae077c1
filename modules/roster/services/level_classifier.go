package services

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
)

const (
	primaryCodeFirst   = 4
	primaryCodeLast    = 11
	secondaryCodeFirst = 12
	secondaryCodeLast  = 15
)

type LevelSource string

const (
	LevelFromCode LevelSource = "code"
	LevelFromText LevelSource = "text"
	LevelFallback LevelSource = "fallback"
)

// LevelClassification is the derived level of a row plus how it was derived.
type LevelClassification struct {
	Level  roster.Level
	Source LevelSource
	Notes  []string
}

func (c LevelClassification) Fallback() bool {
	return c.Source == LevelFallback
}

var (
	secondaryMarkers = []string{"secundaria", "secundario", "secondary", "medio", "media"}
	primaryMarkers   = []string{"basico", "basica", "primaria", "primario", "primary", "elementary"}
	// Preschool levels ("Nivel Medio Mayor", "Prekinder") share words with school stages.
	preschoolMarkers = []string{"parvularia", "parvulario", "parvulos", "prekinder", "kinder", "preschool", "jardin", "cuna"}
	preschoolMedio   = []string{"mayor", "menor"}

	romanGrades = map[string]int{"i": 1, "ii": 2, "iii": 3, "iv": 4}

	ordinalGrades = map[string]int{
		"primero": 1, "primer": 1, "first": 1,
		"segundo": 2, "second": 2,
		"tercero": 3, "tercer": 3, "third": 3,
		"cuarto": 4, "fourth": 4,
		"quinto": 5, "fifth": 5,
		"sexto": 6, "sixth": 6,
		"septimo": 7, "seventh": 7,
		"octavo": 8, "eighth": 8,
	}

	digitsPattern = regexp.MustCompile(`\d+`)
)

// ClassifyLevel maps a level code or free-text level description to a canonical level.
// A known code always wins over text. Unrecognized input yields the default level with
// Source set to LevelFallback.
func ClassifyLevel(raw string, code *int) LevelClassification {
	var notes []string
	if code != nil {
		if level, ok := levelFromCode(*code); ok {
			return LevelClassification{Level: level, Source: LevelFromCode}
		}
		notes = append(notes, fmt.Sprintf("level code %d is not a known level code", *code))
	}

	if text := NormalizeName(raw); text != "" {
		if level, textNotes, ok := levelFromText(text); ok {
			return LevelClassification{Level: level, Source: LevelFromText, Notes: append(notes, textNotes...)}
		}
	}

	notes = append(notes, fmt.Sprintf("level %q not recognized; assumed (%s)", strings.TrimSpace(raw), roster.DefaultLevel))
	return LevelClassification{Level: roster.DefaultLevel, Source: LevelFallback, Notes: notes}
}

func levelFromCode(code int) (roster.Level, bool) {
	switch {
	case code >= primaryCodeFirst && code <= primaryCodeLast:
		return roster.Level{Stage: roster.StagePrimary, Grade: code - (primaryCodeFirst - 1)}, true
	case code >= secondaryCodeFirst && code <= secondaryCodeLast:
		return roster.Level{Stage: roster.StageSecondary, Grade: code - (secondaryCodeFirst - 1)}, true
	default:
		return roster.Level{}, false
	}
}

func levelFromText(text string) (roster.Level, []string, bool) {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r == 'º' || r == 'ª' || !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})

	var stage roster.Stage
	switch {
	case containsAny(tokens, preschoolMarkers),
		containsAny(tokens, []string{"medio"}) && containsAny(tokens, preschoolMedio):
		return roster.Level{}, nil, false
	case containsAny(tokens, secondaryMarkers):
		stage = roster.StageSecondary
	case containsAny(tokens, primaryMarkers):
		stage = roster.StagePrimary
	default:
		return roster.Level{}, nil, false
	}

	grade, found := 0, false
	if stage == roster.StageSecondary {
		grade, found = romanGrade(tokens)
	}
	if !found {
		grade, found = digitGrade(text)
	}
	if !found {
		grade, found = ordinalGrade(tokens)
	}

	var notes []string
	if !found {
		notes = append(notes, fmt.Sprintf("no grade found in level %q; assumed grade 1", text))
		grade = 1
	}
	if clamped := clampGrade(grade, stage.MaxGrade()); clamped != grade {
		notes = append(notes, fmt.Sprintf("grade %d out of range for %s; clamped to %d", grade, stage.Title(), clamped))
		grade = clamped
	}
	return roster.Level{Stage: stage, Grade: grade}, notes, true
}

func containsAny(tokens []string, markers []string) bool {
	for _, tok := range tokens {
		if slices.Contains(markers, tok) {
			return true
		}
	}
	return false
}

func romanGrade(tokens []string) (int, bool) {
	for _, tok := range tokens {
		if g, ok := romanGrades[tok]; ok {
			return g, true
		}
	}
	return 0, false
}

func digitGrade(text string) (int, bool) {
	// Four or more digits are years or codes, never grades.
	for _, m := range digitsPattern.FindAllString(text, -1) {
		if len(m) >= 4 {
			continue
		}
		if g, err := strconv.Atoi(m); err == nil {
			return g, true
		}
	}
	return 0, false
}

func ordinalGrade(tokens []string) (int, bool) {
	for _, tok := range tokens {
		if g, ok := ordinalGrades[tok]; ok {
			return g, true
		}
	}
	return 0, false
}

func clampGrade(grade, max int) int {
	if grade < 1 {
		return 1
	}
	if grade > max {
		return max
	}
	return grade
}
