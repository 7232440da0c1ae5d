// Package workflow is the purchase-request state machine: one table that maps
// each action to the states it may leave, who may trigger it and where it lands.
package workflow

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"compras/internal/models"
	"compras/internal/money"
	"compras/internal/policy"
)

// Action is a workflow verb exposed on the request API.
type Action string

const (
	Submit         Action = "submit"
	ApproveManager Action = "approve_manager"
	ApproveFinal   Action = "approve_final"
	Reject         Action = "reject"
	Cancel         Action = "cancel"
	MarkInProcess  Action = "mark_in_process"
	MarkPurchased  Action = "mark_purchased"
	MarkCompleted  Action = "mark_completed"
)

// Actions lists every workflow action in lifecycle order.
var Actions = []Action{Submit, ApproveManager, ApproveFinal, Reject, Cancel, MarkInProcess, MarkPurchased, MarkCompleted}

var (
	ErrUnknownAction  = errors.New("unknown workflow action")
	ErrReasonRequired = errors.New("a rejection reason is required")
	ErrInvalidAmount  = errors.New("amount is negative or too large")
	ErrInvalidState   = errors.New("request is not in a valid status for this action")
	ErrNotPermitted   = errors.New("actor may not perform this action on this request")
)

// Relation is how the acting user relates to the request.
type Relation int

const (
	// RelRequester is the user who created the request.
	RelRequester Relation = iota
	// RelAreaManager is a GERENTE in the requester's area.
	RelAreaManager
	// RelFinance is a FINANZAS or DIRECCION_GENERAL user.
	RelFinance
)

// guardOrder decides which failure wins when the actor or the state does not match.
type guardOrder int

const (
	// actorFirst: wrong actor is forbidden, right actor in the wrong state is invalid.
	actorFirst guardOrder = iota
	// stateFirst: wrong state is invalid, right state with the wrong actor is forbidden.
	stateFirst
	// combined: any mismatch is forbidden.
	combined
)

type edge struct {
	from models.RequestStatus
	by   Relation
	to   models.RequestStatus
}

type rule struct {
	edges       []edge
	order       guardOrder
	needsReason bool
	check       func(in Input) error
	note        func(in Input) string
	apply       func(r *models.PurchaseRequest, in Input)
}

// Actor is the user attempting a transition.
type Actor struct {
	UserID string
	Role   models.Role
	AreaID *string
}

// Input carries the optional payload of a transition.
type Input struct {
	Notes          string
	Reason         string
	PurchaseDate   *time.Time
	ActualSupplier string
	ActualAmount   *decimal.Decimal
	InvoiceNumber  string

	actorID string
	now     time.Time
}

// Transition is the outcome of a successful Apply.
type Transition struct {
	Action Action
	From   models.RequestStatus
	To     models.RequestStatus
	Notes  string
}

func notesOr(def string) func(Input) string {
	return func(in Input) string {
		if n := strings.TrimSpace(in.Notes); n != "" {
			return n
		}
		return def
	}
}

func fixed(note string) func(Input) string {
	return func(Input) string { return note }
}

var table = map[Action]rule{
	Submit: {
		edges: []edge{{models.StatusBorrador, RelRequester, models.StatusPendienteGerente}},
		order: stateFirst,
		note:  fixed("Solicitud enviada a aprobación."),
	},
	ApproveManager: {
		edges: []edge{{models.StatusPendienteGerente, RelAreaManager, models.StatusAprobadaPorGerente}},
		order: combined,
		note:  notesOr("Aprobada por gerente."),
		apply: func(r *models.PurchaseRequest, in Input) {
			r.ManagerApprovedByID = &in.actorID
			r.ManagerApprovedAt = &in.now
		},
	},
	ApproveFinal: {
		edges: []edge{{models.StatusAprobadaPorGerente, RelFinance, models.StatusAprobada}},
		order: combined,
		note:  notesOr("Aprobación final."),
		apply: func(r *models.PurchaseRequest, in Input) {
			r.FinalApprovedByID = &in.actorID
			r.FinalApprovedAt = &in.now
		},
	},
	Reject: {
		edges: []edge{
			{models.StatusPendienteGerente, RelAreaManager, models.StatusRechazadaGerente},
			{models.StatusAprobadaPorGerente, RelFinance, models.StatusRechazadaFinanzas},
		},
		order:       combined,
		needsReason: true,
		note:        func(in Input) string { return "Rechazada: " + strings.TrimSpace(in.Reason) },
		apply: func(r *models.PurchaseRequest, in Input) {
			r.RejectionReason = strings.TrimSpace(in.Reason)
			r.RejectedByID = &in.actorID
			r.RejectedAt = &in.now
		},
	},
	Cancel: {
		edges: []edge{
			{models.StatusBorrador, RelRequester, models.StatusCancelada},
			{models.StatusPendienteGerente, RelRequester, models.StatusCancelada},
		},
		order: actorFirst,
		note:  notesOr("Solicitud cancelada por el solicitante."),
	},
	MarkInProcess: {
		edges: []edge{{models.StatusAprobada, RelFinance, models.StatusEnProceso}},
		order: actorFirst,
		note:  fixed("Marcada en proceso de compra."),
	},
	MarkPurchased: {
		edges: []edge{{models.StatusEnProceso, RelFinance, models.StatusComprada}},
		order: actorFirst,
		check: func(in Input) error {
			if in.ActualAmount != nil && !money.InRange(*in.ActualAmount) {
				return ErrInvalidAmount
			}
			return nil
		},
		note: fixed("Compra realizada."),
		apply: func(r *models.PurchaseRequest, in Input) {
			if in.PurchaseDate != nil {
				r.PurchaseDate = in.PurchaseDate
			} else {
				today := in.now
				r.PurchaseDate = &today
			}
			r.ActualSupplier = strings.TrimSpace(in.ActualSupplier)
			r.ActualAmount = in.ActualAmount
			r.InvoiceNumber = strings.TrimSpace(in.InvoiceNumber)
		},
	},
	MarkCompleted: {
		edges: []edge{{models.StatusComprada, RelFinance, models.StatusCompletada}},
		order: actorFirst,
		note:  fixed("Solicitud completada."),
	},
}

// Relations returns the set of relations actor holds toward request. The request's
// Requester must be loaded for the area-manager relation to be detected.
func Relations(actor Actor, request *models.PurchaseRequest) map[Relation]bool {
	rels := make(map[Relation]bool, 3)
	if actor.UserID == request.RequesterID {
		rels[RelRequester] = true
	}
	if policy.IsManager(actor.Role) && request.Requester != nil && request.Requester.InArea(actor.AreaID) {
		rels[RelAreaManager] = true
	}
	if policy.IsFinanceOrDirector(actor.Role) {
		rels[RelFinance] = true
	}
	return rels
}

// Resolve checks whether actor may run action on request and returns the target status.
// It does not mutate the request.
func Resolve(action Action, actor Actor, request *models.PurchaseRequest, in Input) (models.RequestStatus, error) {
	r, ok := table[action]
	if !ok {
		return "", ErrUnknownAction
	}
	if r.needsReason && strings.TrimSpace(in.Reason) == "" {
		return "", ErrReasonRequired
	}
	if r.check != nil {
		if err := r.check(in); err != nil {
			return "", err
		}
	}

	rels := Relations(actor, request)
	var stateOK, actorOK bool
	for _, e := range r.edges {
		if e.from == request.Status && rels[e.by] {
			return e.to, nil
		}
		stateOK = stateOK || e.from == request.Status
		actorOK = actorOK || rels[e.by]
	}

	switch r.order {
	case stateFirst:
		if !stateOK {
			return "", ErrInvalidState
		}
	case actorFirst:
		if actorOK {
			return "", ErrInvalidState
		}
	}
	return "", ErrNotPermitted
}

// Apply resolves the transition and mutates request in place: status, approver
// and rejection stamps, and purchase details.
func Apply(action Action, actor Actor, request *models.PurchaseRequest, in Input, now time.Time) (*Transition, error) {
	to, err := Resolve(action, actor, request, in)
	if err != nil {
		return nil, err
	}

	r := table[action]
	in.actorID = actor.UserID
	in.now = now

	t := &Transition{Action: action, From: request.Status, To: to, Notes: r.note(in)}
	request.Status = to
	if r.apply != nil {
		r.apply(request, in)
	}
	return t, nil
}

// Allowed lists the actions actor could run on request right now.
func Allowed(actor Actor, request *models.PurchaseRequest) []Action {
	var out []Action
	for _, a := range Actions {
		if _, err := Resolve(a, actor, request, Input{Reason: "-"}); err == nil {
			out = append(out, a)
		}
	}
	return out
}

// ParseAction validates a path segment as an action.
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	_, ok := table[a]
	return a, ok
}
