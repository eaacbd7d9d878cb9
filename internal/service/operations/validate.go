package operations

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yami-59/network-ops-demo/internal/config"
	"github.com/yami-59/network-ops-demo/internal/model"
)

// CreateInput is a raw creation request. Fields stay strings so that every
// bad field can be reported at once instead of failing on the first decode.
type CreateInput struct {
	Feature        string
	Parameter      string
	Value          string
	Zone           string
	Sites          []string
	DesiredDate    string
	Priority       string
	InitialComment string
	CreatedByName  string
	CreatedByEmail string
}

// TransitionInput is a raw status change request.
type TransitionInput struct {
	Department  string
	ToStatus    string
	Comment     string
	ActorName   string
	ActorEmail  string
	PlannedDate string
}

// ListInput holds the optional listing filters. "ALL" is accepted for
// priority and status and matches everything.
type ListInput struct {
	Feature   string
	Parameter string
	Priority  string
	Status    string
	Query     string
}

type validCreate struct {
	feature, parameter, value, zone string
	sites                           []string
	desiredDate                     *string
	priority                        model.Priority
	initialComment                  *string
	actor                           model.Actor
}

func validateCreate(cat config.Catalog, in CreateInput) (validCreate, error) {
	var (
		v  validCreate
		vb model.ValidationBuilder
	)

	v.feature = strings.TrimSpace(in.Feature)
	v.parameter = strings.TrimSpace(in.Parameter)
	params, knownFeature := cat.Parameters(v.feature)
	switch {
	case v.feature == "":
		vb.Addf("feature", "is required")
	case !knownFeature:
		vb.Addf("feature", "unknown feature %q", v.feature)
	}
	switch {
	case v.parameter == "":
		vb.Addf("parameter", "is required")
	case knownFeature && !cat.Allows(v.feature, v.parameter):
		vb.Addf("parameter", "%q is not allowed for %q (allowed: %s)", v.parameter, v.feature, strings.Join(params, ", "))
	}

	v.value = strings.TrimSpace(in.Value)
	vb.Add(v.value != "", "value", "must not be empty")
	vb.Add(utf8.RuneCountInString(v.value) <= model.MaxValueLen, "value",
		fmt.Sprintf("must be at most %d characters", model.MaxValueLen))

	v.zone = strings.TrimSpace(in.Zone)
	switch {
	case v.zone == "":
		vb.Addf("zone", "is required")
	case !cat.HasZone(v.zone):
		vb.Addf("zone", "unknown zone %q (allowed: %s)", v.zone, strings.Join(cat.Zones, ", "))
	}

	sites, blank := NormalizeSites(in.Sites)
	switch {
	case len(sites) == 0:
		vb.Addf("sites", "at least one site is required")
	case blank:
		vb.Addf("sites", "site identifiers must not be blank")
	case len(sites) > model.MaxSites:
		vb.Addf("sites", "at most %d sites per operation", model.MaxSites)
	}
	v.sites = sites

	prio, ok := model.ParsePriority(in.Priority)
	vb.Add(ok, "priority", fmt.Sprintf("must be one of %v", model.Priorities))
	v.priority = prio

	if d := strings.TrimSpace(in.DesiredDate); d != "" {
		if err := checkDate(d); err != nil {
			vb.Addf("desired_date", "%v", err)
		}
		v.desiredDate = &d
	}

	if c := strings.TrimSpace(in.InitialComment); c != "" {
		vb.Add(utf8.RuneCountInString(c) <= model.MaxCommentLen, "initial_comment",
			fmt.Sprintf("must be at most %d characters", model.MaxCommentLen))
		v.initialComment = &c
	}

	actor, ok := validateActor(&vb, "created_by_name", "created_by_email", in.CreatedByName, in.CreatedByEmail)
	if ok {
		v.actor = actor
	}

	if err := vb.Build(); err != nil {
		return validCreate{}, err
	}
	return v, nil
}

type validTransition struct {
	department  model.Department
	to          model.Status
	comment     string
	actor       model.Actor
	plannedDate *string
}

func validateTransition(in TransitionInput) (validTransition, error) {
	var (
		v  validTransition
		vb model.ValidationBuilder
	)

	dept, ok := model.ParseDepartment(in.Department)
	vb.Add(ok, "department", fmt.Sprintf("must be one of %v", model.Departments))
	v.department = dept

	to, ok := model.ParseStatus(in.ToStatus)
	vb.Add(ok, "to_status", fmt.Sprintf("must be one of %v", model.Statuses))
	v.to = to

	v.comment = strings.TrimSpace(in.Comment)
	vb.Add(v.comment != "", "comment", "is required for every status change")
	vb.Add(utf8.RuneCountInString(v.comment) <= model.MaxCommentLen, "comment",
		fmt.Sprintf("must be at most %d characters", model.MaxCommentLen))

	actor, ok := validateActor(&vb, "actor_name", "actor_email", in.ActorName, in.ActorEmail)
	if ok {
		v.actor = actor
	}

	if d := strings.TrimSpace(in.PlannedDate); d != "" {
		if err := checkDate(d); err != nil {
			vb.Addf("planned_date", "%v", err)
		}
		v.plannedDate = &d
	}

	if err := vb.Build(); err != nil {
		return validTransition{}, err
	}
	return v, nil
}

func validateList(in ListInput) (model.OperationFilter, error) {
	f := model.OperationFilter{
		Feature:   strings.TrimSpace(in.Feature),
		Parameter: strings.TrimSpace(in.Parameter),
		Query:     strings.TrimSpace(in.Query),
	}
	var vb model.ValidationBuilder
	if p := strings.TrimSpace(in.Priority); p != "" && !strings.EqualFold(p, "ALL") {
		prio, ok := model.ParsePriority(p)
		vb.Add(ok, "priority", fmt.Sprintf("must be one of %v or ALL", model.Priorities))
		f.Priority = prio
	}
	if s := strings.TrimSpace(in.Status); s != "" && !strings.EqualFold(s, "ALL") {
		st, ok := model.ParseStatus(s)
		vb.Add(ok, "status", fmt.Sprintf("must be one of %v or ALL", model.Statuses))
		f.Status = st
	}
	if err := vb.Build(); err != nil {
		return model.OperationFilter{}, err
	}
	return f, nil
}

func validateActor(vb *model.ValidationBuilder, nameField, emailField, name, email string) (model.Actor, bool) {
	a := model.Actor{Name: strings.TrimSpace(name), Email: strings.TrimSpace(email)}
	ok := true
	if a.Name == "" {
		vb.Addf(nameField, "is required")
		ok = false
	}
	if a.Email != "" {
		if addr, err := mail.ParseAddress(a.Email); err != nil || addr.Address != a.Email {
			vb.Addf(emailField, "%q is not a valid email address", a.Email)
			ok = false
		}
	}
	return a, ok
}

// NormalizeSites trims site ids and drops duplicates, keeping first-seen
// order. blank reports whether any submitted item was empty.
func NormalizeSites(in []string) (sites []string, blank bool) {
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			blank = true
			continue
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		sites = append(sites, s)
	}
	return sites, blank
}

func checkDate(d string) error {
	if _, err := time.Parse(model.DateLayout, d); err != nil {
		return fmt.Errorf("%q is not a YYYY-MM-DD date", d)
	}
	return nil
}
