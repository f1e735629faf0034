package display

import (
	"strings"

	"github.com/klanisfatcatadoptioncenter/friendlyfirentplugin/types"
)

type Role int

const (
	RoleOther Role = iota
	RoleTank
	RoleHealer
)

const (
	ColorTank   uint16 = 517
	ColorHealer uint16 = 45
	ColorOther  uint16 = 506

	roleNumberTank   uint8 = 1
	roleNumberHealer uint8 = 4
)

var (
	tankJobs   = map[string]struct{}{"PLD": {}, "WAR": {}, "DRK": {}, "GNB": {}}
	healerJobs = map[string]struct{}{"WHM": {}, "SCH": {}, "AST": {}, "SGE": {}}
)

func (r Role) String() string {
	switch r {
	case RoleTank:
		return "tank"
	case RoleHealer:
		return "healer"
	default:
		return "other"
	}
}

func (r Role) ColorID() uint16 {
	switch r {
	case RoleTank:
		return ColorTank
	case RoleHealer:
		return ColorHealer
	default:
		return ColorOther
	}
}

// ClassifyRole prefers the abbreviation whitelists and falls back to the
// numeric role category.
func ClassifyRole(job types.Job) Role {
	abbr := strings.ToUpper(strings.TrimSpace(job.Abbreviation))
	if _, ok := tankJobs[abbr]; ok {
		return RoleTank
	}
	if _, ok := healerJobs[abbr]; ok {
		return RoleHealer
	}

	switch job.Role {
	case roleNumberTank:
		return RoleTank
	case roleNumberHealer:
		return RoleHealer
	default:
		return RoleOther
	}
}

type Decider struct {
	jobs map[uint32]types.Job
}

func NewDecider(jobs []types.Job) *Decider {
	d := &Decider{}
	d.SetJobs(jobs)
	return d
}

func (d *Decider) SetJobs(jobs []types.Job) {
	d.jobs = make(map[uint32]types.Job, len(jobs))
	for _, job := range jobs {
		d.jobs[job.ID] = job
	}
}

func (d *Decider) RoleTag(jobID uint32) (string, Role, bool) {
	job, ok := d.jobs[jobID]
	if !ok {
		return "", RoleOther, false
	}

	abbr := strings.TrimSpace(job.Abbreviation)
	if abbr == "" {
		return "", RoleOther, false
	}

	return abbr, ClassifyRole(job), true
}

func (d *Decider) Decide(e types.Entity, competitive, recognized bool, policy types.Policy) types.DisplayTransform {
	if competitive {
		switch {
		case policy.ScrambleAllInCompetitive:
			if recognized && policy.ShowFriendsReal {
				return d.real(e, competitive, policy)
			}
			return obfuscated(e)
		case policy.RealNamesOnlyInCompetitive:
			return d.real(e, competitive, policy)
		case recognized && policy.ShowFriendsReal:
			return d.real(e, competitive, policy)
		default:
			return unchanged(e)
		}
	}

	if !policy.TestScrambleOutsideCompetitive || !recognized {
		return unchanged(e)
	}
	if policy.ShowFriendsReal {
		return d.real(e, competitive, policy)
	}
	return obfuscated(e)
}

func (d *Decider) real(e types.Entity, competitive bool, policy types.Policy) types.DisplayTransform {
	out := types.DisplayTransform{
		Mode:       types.DisplayReal,
		Text:       e.Name,
		ClearTitle: true,
	}

	if !policy.ShowRoleTag {
		return out
	}

	abbr, role, ok := d.RoleTag(e.JobID)
	if !ok {
		return out
	}

	// Inside competitive zones the host applies its own faction color.
	tag := types.TextSegment{Text: abbr}
	if !competitive {
		tag.ColorID = role.ColorID()
	}

	out.Text = abbr + " " + e.Name
	out.Segments = []types.TextSegment{tag, {Text: " " + e.Name}}
	return out
}

func obfuscated(e types.Entity) types.DisplayTransform {
	return types.DisplayTransform{
		Mode:       types.DisplayObfuscated,
		Text:       Obfuscate(e.Name),
		ClearTitle: true,
	}
}

func unchanged(e types.Entity) types.DisplayTransform {
	return types.DisplayTransform{
		Mode:       types.DisplayDefault,
		Text:       e.Name,
		ClearTitle: true,
	}
}
