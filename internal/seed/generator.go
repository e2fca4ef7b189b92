// Package seed generates synthetic refugee cases for local databases and demos.
package seed

import (
	"fmt"
	"math/rand/v2"
	"time"

	"caseverify/internal/cases/models"
)

var (
	processStatuses = []models.ProcessStatus{models.ProcessStatusActive, models.ProcessStatusClosed}
	legalStatuses   = []models.LegalStatus{models.LegalStatusRefugee, models.LegalStatusAsylumSeeker}
	genders         = []string{"Male", "Female"}

	Countries = []string{
		"South Sudan", "Democratic Republic of Congo", "Eritrea", "Ethiopia",
		"Rwanda", "Burundi", "Kenya", "Malawi", "Egypt", "Sudan", "Somalia",
		"Tanzania", "Uganda", "Chad",
	}

	Districts = []string{
		"Kampala", "Mbale", "Lira", "Soroti", "Arua",
		"Mbarara", "Gulu", "Fort Portal", "Masaka", "Jinja",
	}

	firstNames = []string{
		"Amani", "Nyakim", "Deng", "Achol", "Jean", "Aline", "Yonas", "Selam",
		"Abdi", "Hodan", "Grace", "Emmanuel", "Fatuma", "Joseph", "Mercy",
		"Samuel", "Esther", "Ibrahim", "Nadia", "Patrick", "Ruth", "Moses",
	}

	lastNames = []string{
		"Deng", "Garang", "Habimana", "Uwase", "Tesfaye", "Haile", "Mohamed",
		"Warsame", "Nkurunziza", "Ndayishimiye", "Mbeki", "Okello", "Mutesi",
		"Kabila", "Tshisekedi", "Banda", "Osman", "Mahamat",
	}
)

const (
	minAge           = 12
	maxAge           = 90
	maxFamilySize    = 12
	firstRegistered  = 2005
	lastRegistered   = 2024
	individualFormat = "UGA-%08d"
	familyFormat     = "UGA-%02d-%07d"
)

// Generator produces deterministic cases for a given seed.
type Generator struct {
	rng *rand.Rand
	now time.Time
}

// New returns a generator. Dates of birth are derived from now.
func New(seed uint64, now time.Time) *Generator {
	return &Generator{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now: now,
	}
}

// Generate returns count cases numbered from start.
func (g *Generator) Generate(start, count int) []*models.Case {
	cases := make([]*models.Case, 0, count)
	for n := start; n < start+count; n++ {
		cases = append(cases, g.next(n))
	}
	return cases
}

func (g *Generator) next(n int) *models.Case {
	age := minAge + g.rng.IntN(maxAge-minAge+1)
	registered := g.registrationDate()
	return &models.Case{
		IndividualNumber:  fmt.Sprintf(individualFormat, n),
		FamilyGroupNumber: fmt.Sprintf(familyFormat, registered.Year()%100, n),
		FullName:          pick(g.rng, firstNames) + " " + pick(g.rng, lastNames),
		FamilySize:        1 + g.rng.IntN(maxFamilySize),
		Age:               age,
		Gender:            pick(g.rng, genders),
		CountryOfOrigin:   pick(g.rng, Countries),
		LocationAddress:   pick(g.rng, Districts),
		LegalStatus:       pick(g.rng, legalStatuses),
		ProcessStatus:     pick(g.rng, processStatuses),
		DateOfBirth:       g.now.AddDate(0, 0, -age*365).Format(models.DateLayout),
		RegistrationDate:  registered.Format(models.DateLayout),
	}
}

func (g *Generator) registrationDate() time.Time {
	start := time.Date(firstRegistered, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(lastRegistered, 12, 31, 0, 0, 0, 0, time.UTC)
	days := int(end.Sub(start).Hours() / 24)
	return start.AddDate(0, 0, g.rng.IntN(days+1))
}

func pick[T any](rng *rand.Rand, values []T) T {
	return values[rng.IntN(len(values))]
}
