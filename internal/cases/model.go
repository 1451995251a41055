package cases

import (
	"time"

	"github.com/linnemanlabs/pleura/internal/triage"
)

// Resolution is the clinician's confirmed diagnosis. The empty value means unresolved.
type Resolution string

const (
	ResolutionNoFinding    Resolution = "no_finding"
	ResolutionPneumonia    Resolution = "pneumonia"
	ResolutionNodule       Resolution = "nodule"
	ResolutionPneumothorax Resolution = "pneumothorax"
	ResolutionOther        Resolution = "other"
)

// Resolutions lists every accepted resolution value.
var Resolutions = []Resolution{
	ResolutionNoFinding,
	ResolutionPneumonia,
	ResolutionNodule,
	ResolutionPneumothorax,
	ResolutionOther,
}

// Valid reports whether r is in the closed set of resolutions.
func (r Resolution) Valid() bool {
	for _, v := range Resolutions {
		if r == v {
			return true
		}
	}
	return false
}

// Reading is a graded clinical observation: low, normal or high. Empty means not recorded.
type Reading string

const (
	ReadingLow    Reading = "low"
	ReadingNormal Reading = "normal"
	ReadingHigh   Reading = "high"
)

// Finding is a physical exam finding: absent, normal or present. Empty means not recorded.
type Finding string

const (
	FindingAbsent  Finding = "absent"
	FindingNormal  Finding = "normal"
	FindingPresent Finding = "present"
)

// Vital is a single vital sign reading.
type Vital struct {
	Value              Reading `json:"value"`
	IndividualBaseline bool    `json:"individualBaseline"`
}

// Vitals groups the vital signs captured at intake.
type Vitals struct {
	SpO2        Vital `json:"spo2"`
	BP          Vital `json:"bp"`
	RR          Vital `json:"rr"`
	HR          Vital `json:"hr"`
	Temperature Vital `json:"temperature"`
}

// Symptoms groups the reported respiratory symptoms.
type Symptoms struct {
	Breathlessness    Reading `json:"breathlessness"`
	DyspneaOnExertion Reading `json:"dyspneaOnExertion"`
	Cough             Reading `json:"cough"`
	ChestPain         Reading `json:"chestPain"`
	Sputum            Reading `json:"sputum"`
	Hemoptysis        Reading `json:"hemoptysis"`
}

// ExamFindings groups the chest examination findings.
type ExamFindings struct {
	BreathSounds          Finding `json:"breathSounds"`
	Crackles              Finding `json:"crackles"`
	BronchialBreathSounds Finding `json:"bronchialBreathSounds"`
	TrachealDeviation     Finding `json:"trachealDeviation"`
}

// Patient is the clinical snapshot taken at intake. It is not edited after creation.
type Patient struct {
	Name              string       `json:"name"`
	Age               float64      `json:"age"`
	Sex               string       `json:"sex"`
	ChiefComplaint    string       `json:"chiefComplaint"`
	Vitals            Vitals       `json:"vitals"`
	Symptoms          Symptoms     `json:"symptoms"`
	ExamFindings      ExamFindings `json:"examFindings"`
	Smoker            bool         `json:"smoker"`
	Immunocompromised bool         `json:"immunocompromised"`
}

// Case is one patient encounter tracked from intake to resolution.
type Case struct {
	ID              string              `json:"id"`
	OwnerID         string              `json:"ownerId"`
	Patient         Patient             `json:"patient"`
	ImageFilename   string              `json:"imageFilename"`
	Predictions     *triage.Predictions `json:"predictions"`
	Triage          *triage.Assessment  `json:"triage"`
	Report          *string             `json:"report"`
	Resolution      Resolution          `json:"resolution,omitempty"`
	ResolutionNotes string              `json:"resolutionNotes,omitempty"`
	ResolvedAt      *time.Time          `json:"resolvedAt,omitempty"`
	SimilarCaseID   *string             `json:"similarCaseId"`
	SimilarityScore *float64            `json:"similarityScore"`
	CreatedAt       time.Time           `json:"createdAt"`
}

// Resolved reports whether a resolution has been recorded.
func (c *Case) Resolved() bool { return c.Resolution != "" }

// HasSimilarityMatch reports whether the similarity cache is populated.
func (c *Case) HasSimilarityMatch() bool { return c.SimilarCaseID != nil }

// ResolutionUpdate sets the resolution triple as one unit.
type ResolutionUpdate struct {
	Resolution Resolution
	Notes      string
	ResolvedAt time.Time
}

// SimilarityUpdate sets the similarity cache pair as one unit.
type SimilarityUpdate struct {
	CaseID string
	Score  float64
}

// Patch is a partial update. Nil groups are left untouched. The similarity
// group only fills an empty cache; a recorded match is never replaced.
type Patch struct {
	Resolution *ResolutionUpdate
	Similarity *SimilarityUpdate
	Report     *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Resolution == nil && p.Similarity == nil && p.Report == nil
}

// apply merges p into c. Fields outside the patch are not touched.
func (p Patch) apply(c *Case) {
	if p.Resolution != nil {
		at := p.Resolution.ResolvedAt.UTC()
		c.Resolution = p.Resolution.Resolution
		c.ResolutionNotes = p.Resolution.Notes
		c.ResolvedAt = &at
	}
	if p.Similarity != nil && c.SimilarCaseID == nil {
		id, score := p.Similarity.CaseID, p.Similarity.Score
		c.SimilarCaseID = &id
		c.SimilarityScore = &score
	}
	if p.Report != nil {
		r := *p.Report
		c.Report = &r
	}
}

// Clinician is a registered clinician profile.
type Clinician struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Actor is the resolved identity of the caller.
type Actor struct {
	ID    string
	Email string
}
