package assistant

import (
	"fmt"
	"strings"

	"github.com/yami-59/network-ops-demo/internal/model"
)

// phrasebook holds the fixed sentences of one answer language. Record
// fields are interpolated verbatim and never translated.
type phrasebook struct {
	noData       string
	help         string
	status       string // op_id, status, priority, feature, parameter
	lastChange   string // from, to, date, actor, department, comment
	created      string // date, actor
	failedHeader string // count
	listHeaders  map[model.Status]string
	anyHeader    string
	window       string // label, from, to
	plannedOn    string
	desiredOn    string
}

var phrasebooks = map[string]phrasebook{
	"fr": {
		noData:       "Information non disponible dans la base.",
		help:         "Je peux répondre sur: planifiées / exécutées / en échec / statut d'une opération (OP-YYYY-NNNN).",
		status:       "Statut de %s: %s (priority: %s, feature: %s, parameter: %s).",
		lastChange:   "Dernier changement: %s → %s le %s par %s (%s): %s",
		created:      "Créée le %s par %s, pas encore de changement de statut.",
		failedHeader: "Oui. %d opération(s) en échec. Voir:",
		listHeaders: map[model.Status]string{
			model.StatusPlanned:  "Opérations planifiées (%d):",
			model.StatusExecuted: "Opérations exécutées (%d):",
			model.StatusPending:  "Opérations en attente (%d):",
		},
		anyHeader: "Opérations concernées (%d):",
		window:    "Période %q: du %s au %s.",
		plannedOn: "planifiée le %s",
		desiredOn: "souhaitée le %s",
	},
	"en": {
		noData:       "No matching data in the store.",
		help:         "I can answer about: planned / executed / failed operations / the status of an operation (OP-YYYY-NNNN).",
		status:       "Status of %s: %s (priority: %s, feature: %s, parameter: %s).",
		lastChange:   "Last change: %s → %s on %s by %s (%s): %s",
		created:      "Created on %s by %s, no status change yet.",
		failedHeader: "Yes. %d failed operation(s). See:",
		listHeaders: map[model.Status]string{
			model.StatusPlanned:  "Planned operations (%d):",
			model.StatusExecuted: "Executed operations (%d):",
			model.StatusPending:  "Pending operations (%d):",
		},
		anyHeader: "Matching operations (%d):",
		window:    "Period %q: %s to %s.",
		plannedOn: "planned for %s",
		desiredOn: "desired for %s",
	},
}

func phrasebookFor(lang string) phrasebook {
	if pb, ok := phrasebooks[strings.ToLower(lang)]; ok {
		return pb
	}
	return phrasebooks["fr"]
}

// compose renders cands. References are exactly the candidate ids, and the
// counts in the text cover those references only.
func (g *Gateway) compose(sig Signals, cands []candidate) model.Answer {
	refs := make([]string, len(cands))
	for i, c := range cands {
		refs[i] = c.op.OpID
	}

	var b strings.Builder
	if len(sig.OpIDs) > 0 {
		for i, c := range cands {
			if i > 0 {
				b.WriteString("\n")
			}
			g.writeStatus(&b, c)
		}
		return model.Answer{Answer: b.String(), References: refs}
	}

	if sig.Window != nil {
		fmt.Fprintf(&b, g.text.window+"\n", sig.Window.Label, sig.Window.From, sig.Window.To)
	}

	groups := groupByStatus(sig.Statuses, cands)
	if len(groups) == 0 {
		fmt.Fprintf(&b, g.text.anyHeader, len(cands))
		g.writeLines(&b, cands)
		return model.Answer{Answer: b.String(), References: refs}
	}
	for i, grp := range groups {
		if i > 0 {
			b.WriteString("\n")
		}
		if grp.status == model.StatusFailed {
			fmt.Fprintf(&b, g.text.failedHeader, len(grp.cands))
		} else {
			fmt.Fprintf(&b, g.text.listHeaders[grp.status], len(grp.cands))
		}
		g.writeLines(&b, grp.cands)
	}
	return model.Answer{Answer: b.String(), References: refs}
}

func (g *Gateway) writeStatus(b *strings.Builder, c candidate) {
	op := c.op
	fmt.Fprintf(b, g.text.status, op.OpID, op.Status, op.Priority, op.Feature, op.Parameter)
	if len(c.history) == 0 {
		return
	}
	last := c.history[len(c.history)-1]
	b.WriteString(" ")
	if last.FromStatus == nil {
		fmt.Fprintf(b, g.text.created, last.At.Format(model.DateLayout), last.ActorName)
		return
	}
	fmt.Fprintf(b, g.text.lastChange, *last.FromStatus, last.ToStatus,
		last.At.Format(model.DateLayout), last.ActorName, last.Department, last.Comment)
}

func (g *Gateway) writeLines(b *strings.Builder, cands []candidate) {
	for _, c := range cands {
		op := c.op
		fmt.Fprintf(b, "\n- %s: %s / %s = %s, zone %s, %s", op.OpID, op.Feature, op.Parameter, op.Value, op.Zone, op.Priority)
		switch {
		case op.PlannedDate != nil:
			b.WriteString(", " + fmt.Sprintf(g.text.plannedOn, *op.PlannedDate))
		case op.DesiredDate != nil:
			b.WriteString(", " + fmt.Sprintf(g.text.desiredOn, *op.DesiredDate))
		}
	}
}

type statusGroup struct {
	status model.Status
	cands  []candidate
}

// groupByStatus splits cands by the asked statuses, in the order they were
// asked, dropping empty groups.
func groupByStatus(statuses []model.Status, cands []candidate) []statusGroup {
	var out []statusGroup
	for _, st := range statuses {
		grp := statusGroup{status: st}
		for _, c := range cands {
			if c.op.Status == st {
				grp.cands = append(grp.cands, c)
			}
		}
		if len(grp.cands) > 0 {
			out = append(out, grp)
		}
	}
	return out
}
