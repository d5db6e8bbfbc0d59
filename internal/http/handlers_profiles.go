package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"billcal/internal/core"
)

type profileView struct {
	Profile core.Profile
	Bills   []core.Bill
}

type profilesView struct {
	Profiles []profileView
}

func (s *Server) handleProfilesPage(w http.ResponseWriter, r *http.Request) {
	view, err := s.profilesView(r)
	if err != nil {
		s.respondError(w, r, "list_profiles", err)
		return
	}
	s.render(w, r, "profiles.html", view)
}

func (s *Server) handleProfilesList(w http.ResponseWriter, r *http.Request) {
	view, err := s.profilesView(r)
	if err != nil {
		s.respondError(w, r, "list_profiles", err)
		return
	}
	s.render(w, r, "profile_list.html", view)
}

func (s *Server) profilesView(r *http.Request) (profilesView, error) {
	profiles, err := s.bills.ListProfiles(r.Context())
	if err != nil {
		return profilesView{}, err
	}
	view := profilesView{Profiles: make([]profileView, 0, len(profiles))}
	for _, p := range profiles {
		bills, err := s.bills.ListBills(r.Context(), p.ID)
		if err != nil {
			return profilesView{}, err
		}
		view.Profiles = append(view.Profiles, profileView{Profile: p, Bills: bills})
	}
	return view, nil
}

func (s *Server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(w, r)
	if resp := ParseBodyOrFail(p); resp != nil {
		resp.Write(w)
		return
	}
	created, err := s.bills.CreateProfile(r.Context(), ParseProfileForm(p))
	if err != nil {
		s.respondError(w, r, "create_profile", err)
		return
	}
	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerProfilesRefresh().
		TriggerSuccessNotification("Profile " + created.Name + " added").
		Write(w)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, "update_profile", err)
		return
	}
	p := NewRequestBodyParser(w, r)
	if resp := ParseBodyOrFail(p); resp != nil {
		resp.Write(w)
		return
	}
	profile := ParseProfileForm(p)
	profile.ID = id

	if err := s.bills.UpdateProfile(r.Context(), profile); err != nil {
		s.respondError(w, r, "update_profile", err)
		return
	}
	NewHTMXResponse().
		TriggerProfilesRefresh().
		TriggerSuccessNotification("Profile updated").
		Write(w)
}

func (s *Server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, "delete_profile", err)
		return
	}
	if err := s.bills.DeleteProfile(r.Context(), id); err != nil {
		s.respondError(w, r, "delete_profile", err)
		return
	}
	NewHTMXResponse().
		TriggerProfilesRefresh().
		TriggerSuccessNotification("Profile deleted").
		Write(w)
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	profileID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, "create_bill", err)
		return
	}
	p := NewRequestBodyParser(w, r)
	if resp := ParseBodyOrFail(p); resp != nil {
		resp.Write(w)
		return
	}
	created, err := s.bills.CreateBill(r.Context(), core.Bill{ProfileID: profileID, Name: p.Get("name")})
	if err != nil {
		s.respondError(w, r, "create_bill", err)
		return
	}
	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerProfilesRefresh().
		TriggerSuccessNotification("Bill " + created.Name + " added").
		Write(w)
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, "delete_bill", err)
		return
	}
	if err := s.bills.DeleteBill(r.Context(), id); err != nil {
		s.respondError(w, r, "delete_bill", err)
		return
	}
	NewHTMXResponse().
		TriggerProfilesRefresh().
		TriggerSuccessNotification("Bill deleted").
		Write(w)
}
