package model

import (
	"fmt"
	"strconv"
)

// Sex is the sex filter applied to one query
type Sex string

const (
	SexAll    Sex = "ALL"
	SexMale   Sex = "M"
	SexFemale Sex = "F"
)

// Sexes lists every sex filter in the order jobs are generated
var Sexes = []Sex{SexAll, SexMale, SexFemale}

// Stage identifies one of the job-space phases
type Stage string

const (
	StageTotals    Stage = "totals"
	StageAgeBands  Stage = "age_bands"
	StageDiagnoses Stage = "diagnoses"
)

// Stages lists the stages in the order they always run
var Stages = []Stage{StageTotals, StageAgeBands, StageDiagnoses}

// Tree keys written by the totals and age-band stages
const (
	TotalsKey         = "totais"
	AgeBandTotalsKey  = "totaisCID"
	describeAllBands  = "ALL"
	describeTotalCode = "TOT"
)

// Job identifies one remote query. AgeBand and Diagnosis are optional (empty when unset).
type Job struct {
	Year      int    `json:"year"`
	Sex       Sex    `json:"sex"`
	AgeBand   string `json:"age_band,omitempty"`
	Diagnosis string `json:"diagnosis,omitempty"`
}

// Stage derives the job's stage from which optional filters are present
func (j Job) Stage() Stage {
	switch {
	case j.Diagnosis != "":
		return StageDiagnoses
	case j.AgeBand != "":
		return StageAgeBands
	default:
		return StageTotals
	}
}

// Path returns the branch of the result tree that receives this job's value for region.
// The leaf key under that branch is always the job's sex.
func (j Job) Path(region string) []string {
	year := strconv.Itoa(j.Year)
	switch j.Stage() {
	case StageDiagnoses:
		return []string{year, region, j.AgeBand, j.Diagnosis}
	case StageAgeBands:
		return []string{year, region, j.AgeBand, AgeBandTotalsKey}
	default:
		return []string{year, region, TotalsKey}
	}
}

// LeafKey is the key the job's values are written under
func (j Job) LeafKey() string {
	return string(j.Sex)
}

// String renders the job as year-sex-band-code, e.g. "2020-M-ALL-TOT"
func (j Job) String() string {
	band, code := j.AgeBand, j.Diagnosis
	if band == "" {
		band = describeAllBands
	}
	if code == "" {
		code = describeTotalCode
	}
	return fmt.Sprintf("%d-%s-%s-%s", j.Year, j.Sex, band, code)
}
