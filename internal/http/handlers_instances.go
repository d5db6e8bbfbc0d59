package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"billcal/internal/core"
)

type billOption struct {
	ID    int64
	Label string
}

type instanceModalView struct {
	Instance core.BillInstance
	Month    string
	Bills    []billOption
}

func (s *Server) handleNewInstanceModal(w http.ResponseWriter, r *http.Request) {
	s.renderInstanceModal(w, r, s.bills.DefaultInstanceForm(s.now()))
}

func (s *Server) handleEditInstanceModal(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, "edit_instance", err)
		return
	}
	bi, err := s.bills.GetInstance(r.Context(), id)
	if err != nil {
		s.respondError(w, r, "edit_instance", err)
		return
	}
	s.renderInstanceModal(w, r, bi)
}

func (s *Server) renderInstanceModal(w http.ResponseWriter, r *http.Request, bi core.BillInstance) {
	options, err := s.billOptions(r)
	if err != nil {
		s.respondError(w, r, "instance_modal", err)
		return
	}
	s.render(w, r, "instance_modal.html", instanceModalView{
		Instance: bi,
		Month:    monthKey(bi.Month),
		Bills:    options,
	})
}

// billOptions labels every bill with its profile for the bill select.
func (s *Server) billOptions(r *http.Request) ([]billOption, error) {
	profiles, err := s.bills.ListProfiles(r.Context())
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(profiles))
	for _, p := range profiles {
		names[p.ID] = p.Name
	}

	bills, err := s.bills.ListAllBills(r.Context())
	if err != nil {
		return nil, err
	}
	out := make([]billOption, 0, len(bills))
	for _, b := range bills {
		out = append(out, billOption{ID: b.ID, Label: names[b.ProfileID] + " · " + b.Name})
	}
	return out, nil
}

func (s *Server) handleCreateInstance(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if resp := ParseBodyOrFail(p); resp != nil {
		resp.Write(w)
		return
	}
	bi, err := ParseInstanceForm(p)
	if err != nil {
		s.respondError(w, r, "create_instance", err)
		return
	}

	created, err := s.bills.CreateBillInstance(r.Context(), bi)
	if err != nil {
		s.respondError(w, r, "create_instance", err)
		return
	}

	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerCalendarRefresh(monthKey(created.Month)).
		TriggerModalClose().
		TriggerSuccessNotification("Bill saved").
		Write(w)
}

func (s *Server) handleUpdateInstance(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, "update_instance", err)
		return
	}
	p := NewRequestBodyParser(w, r)
	if resp := ParseBodyOrFail(p); resp != nil {
		resp.Write(w)
		return
	}
	bi, err := ParseInstanceForm(p)
	if err != nil {
		s.respondError(w, r, "update_instance", err)
		return
	}
	bi.ID = id

	if err := s.bills.UpdateBillInstance(r.Context(), bi); err != nil {
		s.respondError(w, r, "update_instance", err)
		return
	}

	NewHTMXResponse().
		TriggerCalendarRefresh(monthKey(bi.Month)).
		TriggerModalClose().
		TriggerSuccessNotification("Bill updated").
		Write(w)
}

// handleTogglePaid sets the paid flag from the form value paid=true|false.
func (s *Server) handleTogglePaid(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, "toggle_paid", err)
		return
	}
	p := NewRequestBodyParser(w, r)
	if resp := ParseBodyOrFail(p); resp != nil {
		resp.Write(w)
		return
	}

	bi, err := s.bills.SetPaid(r.Context(), id, parseBool(p.Get("paid")))
	if err != nil {
		s.respondError(w, r, "toggle_paid", err)
		return
	}

	msg := "Marked as unpaid"
	if bi.Paid {
		msg = "Marked as paid"
	}
	NewHTMXResponse().
		TriggerCalendarRefresh(monthKey(bi.Month)).
		TriggerSuccessNotification(msg).
		Write(w)
}

func (s *Server) handleDeleteInstance(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, "delete_instance", err)
		return
	}
	bi, err := s.bills.GetInstance(r.Context(), id)
	if err != nil {
		s.respondError(w, r, "delete_instance", err)
		return
	}
	if err := s.bills.DeleteBillInstance(r.Context(), id); err != nil {
		s.respondError(w, r, "delete_instance", err)
		return
	}

	NewHTMXResponse().
		TriggerCalendarRefresh(monthKey(bi.Month)).
		TriggerModalClose().
		TriggerSuccessNotification("Bill deleted").
		Write(w)
}
