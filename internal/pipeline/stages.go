package pipeline

import (
	"tabnet-harvester/internal/model"
)

// GenerateJobs expands the job space of stage for the given run parameters.
// Totals: years × sexes. Age bands: × bands. Diagnoses: × bands × codes.
func GenerateJobs(stage model.Stage, p model.RunParams) []model.Job {
	jobs := make([]model.Job, 0, JobCount(stage, p))
	switch stage {
	case model.StageTotals:
		for _, year := range p.Years {
			for _, sex := range model.Sexes {
				jobs = append(jobs, model.Job{Year: year, Sex: sex})
			}
		}
	case model.StageAgeBands:
		for _, year := range p.Years {
			for _, sex := range model.Sexes {
				for _, band := range p.AgeBands {
					jobs = append(jobs, model.Job{Year: year, Sex: sex, AgeBand: band})
				}
			}
		}
	case model.StageDiagnoses:
		for _, year := range p.Years {
			for _, sex := range model.Sexes {
				for _, band := range p.AgeBands {
					for _, code := range p.Diagnoses {
						jobs = append(jobs, model.Job{Year: year, Sex: sex, AgeBand: band, Diagnosis: code})
					}
				}
			}
		}
	}
	return jobs
}

// JobCount is len(GenerateJobs(stage, p)) without building the jobs
func JobCount(stage model.Stage, p model.RunParams) int {
	n := len(p.Years) * len(model.Sexes)
	switch stage {
	case model.StageTotals:
		return n
	case model.StageAgeBands:
		return n * len(p.AgeBands)
	case model.StageDiagnoses:
		return n * len(p.AgeBands) * len(p.Diagnoses)
	}
	return 0
}

// Plan returns the job count of every stage the run includes
func Plan(p model.RunParams) map[model.Stage]int {
	plan := make(map[model.Stage]int, len(model.Stages))
	for _, stage := range model.Stages {
		if !p.HasStage(stage) {
			continue
		}
		plan[stage] = JobCount(stage, p)
	}
	return plan
}

// treeStore writes each region value at the job's path in tree
func treeStore(tree *Tree) StoreFunc {
	return func(job model.Job, region string, value float64) error {
		return tree.SetPath(job.Path(region), job.LeafKey(), value)
	}
}
