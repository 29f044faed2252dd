package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"arenda/internal/database"
	"arenda/internal/models"
	"arenda/internal/resp"
	"arenda/internal/service"
)

const dateLayout = "2006-01-02"

func writeEnvelope(w http.ResponseWriter, e resp.Envelope) {
	writeEnvelopeStatus(w, http.StatusOK, e)
}

func writeEnvelopeStatus(w http.ResponseWriter, statusCode int, e resp.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(resp.Render(e)))
}

// writeRawEnvelope splices pre-rendered JSON into the envelope without
// re-parsing it, so cached payloads travel byte-for-byte.
func writeRawEnvelope(w http.ResponseWriter, field, rawJSON string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"errno":%q,"errmsg":"OK","data":{%q:%s}}`, resp.CodeOK, field, rawJSON)
}

// writePrerendered writes a response that is already a full envelope.
func writePrerendered(w http.ResponseWriter, payload string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(payload))
}

func decodeBody(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

// authenticate resolves the session or writes the SESSIONERR envelope.
func (s *HTTPServer) authenticate(w http.ResponseWriter, r *http.Request) (*models.Session, bool) {
	session, err := s.users.Authenticate(r.Context(), sessionToken(r))
	if err != nil {
		if errors.Is(err, service.ErrNoSession) {
			writeEnvelope(w, resp.Error(resp.CodeSessionErr, "not logged in"))
		} else {
			s.logger.Error().Err(err).Msg("session lookup failed")
			writeEnvelope(w, resp.Error(resp.CodeDBErr, "session lookup failed"))
		}
		return nil, false
	}
	return session, true
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(r.PathValue(name), 10, 64)
}

func (s *HTTPServer) handleAreas(w http.ResponseWriter, r *http.Request) {
	payload, err := s.houses.GetAreasJSON(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load areas")
		writeEnvelope(w, resp.Error(resp.CodeDBErr, "failed to load areas"))
		return
	}
	writeRawEnvelope(w, "areas", payload)
}

func (s *HTTPServer) handleHouseIndex(w http.ResponseWriter, r *http.Request) {
	payload, err := s.houses.GetHomePageJSON(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load home page")
		writeEnvelope(w, resp.Error(resp.CodeDBErr, "failed to load home page"))
		return
	}
	writeRawEnvelope(w, "houses", payload)
}

func (s *HTTPServer) handleHouseDetail(w http.ResponseWriter, r *http.Request) {
	houseID, err := pathID(r, "id")
	if err != nil {
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "invalid house id"))
		return
	}

	payload, err := s.houses.GetHouseDetailJSON(r.Context(), houseID)
	if err != nil {
		if errors.Is(err, service.ErrHouseNotFound) {
			writeEnvelope(w, resp.Error(resp.CodeNoData, "house not found"))
			return
		}
		s.logger.Error().Err(err).Int64("house_id", houseID).Msg("failed to load house")
		writeEnvelope(w, resp.Error(resp.CodeDBErr, "failed to load house"))
		return
	}
	writeRawEnvelope(w, "house", payload)
}

func (s *HTTPServer) handleSearchHouses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := service.SearchQuery{SortKey: strings.TrimSpace(q.Get("sk"))}

	if raw := strings.TrimSpace(q.Get("aid")); raw != "" {
		aid, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeEnvelope(w, resp.Error(resp.CodeParamErr, "invalid area id"))
			return
		}
		query.AreaID = aid
	}
	if raw := strings.TrimSpace(q.Get("sd")); raw != "" {
		begin, err := time.Parse(dateLayout, raw)
		if err != nil {
			writeEnvelope(w, resp.Error(resp.CodeParamErr, "invalid start date; expected YYYY-MM-DD"))
			return
		}
		query.BeginDate = &begin
	}
	if raw := strings.TrimSpace(q.Get("ed")); raw != "" {
		end, err := time.Parse(dateLayout, raw)
		if err != nil {
			writeEnvelope(w, resp.Error(resp.CodeParamErr, "invalid end date; expected YYYY-MM-DD"))
			return
		}
		query.EndDate = &end
	}
	if raw := strings.TrimSpace(q.Get("p")); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			writeEnvelope(w, resp.Error(resp.CodeParamErr, "invalid page"))
			return
		}
		query.Page = page
	}

	payload, err := s.houses.SearchHousesJSON(r.Context(), query)
	if err != nil {
		if errors.Is(err, database.ErrInvalidRange) {
			writeEnvelope(w, resp.Error(resp.CodeParamErr, "end date before start date"))
			return
		}
		s.logger.Error().Err(err).Msg("house search failed")
		writeEnvelope(w, resp.Error(resp.CodeDBErr, "house search failed"))
		return
	}
	writePrerendered(w, payload)
}

func (s *HTTPServer) handleCreateHouse(w http.ResponseWriter, r *http.Request) {
	session, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var body struct {
		Title     string  `json:"title"`
		Price     int64   `json:"price"`
		AreaID    int64   `json:"area_id"`
		Address   string  `json:"address"`
		RoomCount int     `json:"room_count"`
		Acreage   float64 `json:"acreage"`
		Unit      string  `json:"unit"`
		Capacity  int     `json:"capacity"`
		Beds      string  `json:"beds"`
		Deposit   int64   `json:"deposit"`
		MinDays   int     `json:"min_days"`
		MaxDays   int     `json:"max_days"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "invalid JSON body"))
		return
	}

	house := &models.House{
		UserID:    session.UserID,
		AreaID:    body.AreaID,
		Title:     body.Title,
		Price:     body.Price,
		Address:   body.Address,
		RoomCount: int64(body.RoomCount),
		Acreage:   int64(body.Acreage),
		Unit:      body.Unit,
		Capacity:  int64(body.Capacity),
		Beds:      body.Beds,
		Deposit:   body.Deposit,
		MinDays:   int64(body.MinDays),
		MaxDays:   int64(body.MaxDays),
	}
	if err := s.houses.CreateHouse(r.Context(), house); err != nil {
		s.logger.Error().Err(err).Msg("failed to create house")
		writeEnvelope(w, resp.Error(resp.CodeParamErr, err.Error()))
		return
	}
	writeEnvelope(w, resp.OK(map[string]interface{}{"house_id": house.ID}))
}

func (s *HTTPServer) handleHouseImage(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}

	houseID, err := pathID(r, "id")
	if err != nil {
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "invalid house id"))
		return
	}

	var body struct {
		ImageURL string `json:"image_url"`
	}
	if err := decodeBody(r, &body); err != nil || body.ImageURL == "" {
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "image_url is required"))
		return
	}

	if err := s.houses.AttachHouseImage(r.Context(), houseID, body.ImageURL); err != nil {
		if errors.Is(err, service.ErrHouseNotFound) {
			writeEnvelope(w, resp.Error(resp.CodeNoData, "house not found"))
			return
		}
		s.logger.Error().Err(err).Int64("house_id", houseID).Msg("failed to attach image")
		writeEnvelope(w, resp.Error(resp.CodeDBErr, "failed to attach image"))
		return
	}
	writeEnvelope(w, resp.OK(map[string]interface{}{"image_url": body.ImageURL}))
}

func (s *HTTPServer) handleUserHouses(w http.ResponseWriter, r *http.Request) {
	session, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	houses, err := s.houses.GetUserHouses(r.Context(), session.UserID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load user houses")
		writeEnvelope(w, resp.Error(resp.CodeDBErr, "failed to load houses"))
		return
	}

	views := make([]map[string]interface{}, 0, len(houses))
	for _, h := range houses {
		views = append(views, h.BasicView())
	}
	writeEnvelope(w, resp.OK(map[string]interface{}{"houses": views}))
}

func (s *HTTPServer) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	session, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var body struct {
		HouseID   int64  `json:"house_id"`
		StartDate string `json:"start_date"`
		EndDate   string `json:"end_date"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "invalid JSON body"))
		return
	}

	begin, err := time.Parse(dateLayout, body.StartDate)
	if err != nil {
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "invalid start date; expected YYYY-MM-DD"))
		return
	}
	end, err := time.Parse(dateLayout, body.EndDate)
	if err != nil {
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "invalid end date; expected YYYY-MM-DD"))
		return
	}

	taskID, err := s.orders.SubmitOrder(r.Context(), session.UserID, body.HouseID, begin, end)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrDateConflict):
			writeEnvelope(w, resp.Error(resp.CodeDataExist, "dates already booked"))
		case errors.Is(err, database.ErrInvalidRange),
			errors.Is(err, database.ErrPastDate),
			errors.Is(err, database.ErrDateTooFar),
			errors.Is(err, service.ErrStayTooShort),
			errors.Is(err, service.ErrOwnHouse):
			writeEnvelope(w, resp.Error(resp.CodeParamErr, err.Error()))
		case errors.Is(err, service.ErrHouseNotFound):
			writeEnvelope(w, resp.Error(resp.CodeNoData, "house not found"))
		default:
			s.logger.Error().Err(err).Msg("failed to submit order")
			writeEnvelope(w, resp.Error(resp.CodeDBErr, "failed to submit order"))
		}
		return
	}
	writeEnvelope(w, resp.OK(map[string]interface{}{"task_id": taskID}))
}

func (s *HTTPServer) handlePollCommit(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}

	taskID, err := pathID(r, "task_id")
	if err != nil {
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "invalid task id"))
		return
	}

	status, err := s.orders.PollCommit(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			writeEnvelope(w, resp.Error(resp.CodeNoData, "task not found"))
			return
		}
		s.logger.Error().Err(err).Msg("failed to poll commit task")
		writeEnvelope(w, resp.Error(resp.CodeDBErr, "failed to poll task"))
		return
	}
	writeEnvelope(w, resp.OK(status))
}

func (s *HTTPServer) handleListOrders(w http.ResponseWriter, r *http.Request) {
	session, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var (
		orders []*models.Order
		err    error
	)
	if r.URL.Query().Get("role") == "landlord" {
		orders, err = s.orders.GetHostOrders(r.Context(), session.UserID)
	} else {
		orders, err = s.orders.GetUserOrders(r.Context(), session.UserID)
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load orders")
		writeEnvelope(w, resp.Error(resp.CodeDBErr, "failed to load orders"))
		return
	}

	views := make([]map[string]interface{}, 0, len(orders))
	for _, o := range orders {
		views = append(views, o.View())
	}
	writeEnvelope(w, resp.OK(map[string]interface{}{"orders": views}))
}

func (s *HTTPServer) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	orderID, err := pathID(r, "id")
	if err != nil {
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "invalid order id"))
		return
	}

	var body struct {
		Action  string `json:"action"`
		Version int64  `json:"version"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "invalid JSON body"))
		return
	}

	ctx := r.Context()
	switch body.Action {
	case "accept":
		err = s.orders.AcceptOrder(ctx, session.UserID, orderID, body.Version)
	case "reject":
		err = s.orders.RejectOrder(ctx, session.UserID, orderID, body.Version)
	case "pay":
		err = s.orders.PayOrder(ctx, session.UserID, orderID)
	case "complete":
		err = s.orders.CompleteOrder(ctx, session.UserID, orderID)
	case "cancel":
		err = s.orders.CancelOrder(ctx, session.UserID, orderID)
	default:
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "unknown action"))
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeEnvelope(w, resp.Error(resp.CodeNoData, "order not found"))
		case errors.Is(err, service.ErrNotOrderOwner), errors.Is(err, service.ErrNotHouseOwner):
			writeEnvelope(w, resp.Error(resp.CodeReqErr, "not allowed"))
		case errors.Is(err, service.ErrBadTransition):
			writeEnvelope(w, resp.Error(resp.CodeDataErr, "invalid status transition"))
		case errors.Is(err, service.ErrStaleOrder):
			writeEnvelope(w, resp.Error(resp.CodeDataErr, "order changed, refresh and retry"))
		default:
			s.logger.Error().Err(err).Int64("order_id", orderID).Msg("failed to update order status")
			writeEnvelope(w, resp.Error(resp.CodeDBErr, "failed to update order"))
		}
		return
	}
	writeEnvelope(w, resp.OK(nil))
}

func (s *HTTPServer) handleOrderComment(w http.ResponseWriter, r *http.Request) {
	session, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	orderID, err := pathID(r, "id")
	if err != nil {
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "invalid order id"))
		return
	}

	var body struct {
		Comment string `json:"comment"`
	}
	if err := decodeBody(r, &body); err != nil || strings.TrimSpace(body.Comment) == "" {
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "comment is required"))
		return
	}

	if err := s.orders.CommentOrder(r.Context(), session.UserID, orderID, body.Comment); err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			writeEnvelope(w, resp.Error(resp.CodeNoData, "order not found"))
		case errors.Is(err, service.ErrNotOrderOwner):
			writeEnvelope(w, resp.Error(resp.CodeReqErr, "not allowed"))
		case errors.Is(err, service.ErrBadTransition):
			writeEnvelope(w, resp.Error(resp.CodeDataErr, "order is not awaiting comment"))
		default:
			s.logger.Error().Err(err).Int64("order_id", orderID).Msg("failed to save comment")
			writeEnvelope(w, resp.Error(resp.CodeDBErr, "failed to save comment"))
		}
		return
	}
	writeEnvelope(w, resp.OK(nil))
}

func (s *HTTPServer) handleExportOrders(w http.ResponseWriter, r *http.Request) {
	session, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	orders, err := s.orders.GetHostOrders(r.Context(), session.UserID)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load orders for export")
		writeEnvelope(w, resp.Error(resp.CodeDBErr, "failed to load orders"))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="orders.xlsx"`)
	if err := s.export.WriteOrdersReport(w, orders); err != nil {
		s.logger.Error().Err(err).Msg("failed to write orders report")
	}
}

func (s *HTTPServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mobile   string `json:"mobile"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "invalid JSON body"))
		return
	}
	if body.Mobile == "" || body.Password == "" {
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "mobile and password are required"))
		return
	}

	user, err := s.users.Register(r.Context(), body.Mobile, body.Password)
	if err != nil {
		if errors.Is(err, service.ErrMobileTaken) {
			writeEnvelope(w, resp.Error(resp.CodeDataExist, "mobile already registered"))
			return
		}
		s.logger.Error().Err(err).Msg("registration failed")
		writeEnvelope(w, resp.Error(resp.CodeDBErr, "registration failed"))
		return
	}
	writeEnvelope(w, resp.OK(user.View()))
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mobile   string `json:"mobile"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "invalid JSON body"))
		return
	}
	if body.Mobile == "" || body.Password == "" {
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "mobile and password are required"))
		return
	}

	session, err := s.users.Login(r.Context(), body.Mobile, body.Password, clientIdentity(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTooManyAttempts):
			writeEnvelope(w, resp.Error(resp.CodeReqErr, "too many failed attempts, try again later"))
		case errors.Is(err, service.ErrBadCredentials):
			writeEnvelope(w, resp.Error(resp.CodeLoginErr, "wrong mobile or password"))
		default:
			s.logger.Error().Err(err).Msg("login failed")
			writeEnvelope(w, resp.Error(resp.CodeDBErr, "login failed"))
		}
		return
	}
	writeEnvelope(w, resp.OK(map[string]interface{}{
		"token": session.Token,
		"name":  session.Name,
	}))
}

func (s *HTTPServer) handleProfile(w http.ResponseWriter, r *http.Request) {
	session, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	user, err := s.users.GetProfile(r.Context(), session.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeEnvelope(w, resp.Error(resp.CodeNoData, "user not found"))
			return
		}
		s.logger.Error().Err(err).Msg("failed to load profile")
		writeEnvelope(w, resp.Error(resp.CodeDBErr, "failed to load profile"))
		return
	}
	writeEnvelope(w, resp.OK(user.View()))
}

func (s *HTTPServer) handleSetName(w http.ResponseWriter, r *http.Request) {
	session, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(r, &body); err != nil || strings.TrimSpace(body.Name) == "" {
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "name is required"))
		return
	}

	if err := s.users.SetName(r.Context(), session, body.Name); err != nil {
		s.logger.Error().Err(err).Msg("failed to update name")
		writeEnvelope(w, resp.Error(resp.CodeDBErr, "failed to update name"))
		return
	}
	writeEnvelope(w, resp.OK(map[string]interface{}{"name": body.Name}))
}

func (s *HTTPServer) handleSetAvatar(w http.ResponseWriter, r *http.Request) {
	session, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var body struct {
		AvatarURL string `json:"avatar_url"`
	}
	if err := decodeBody(r, &body); err != nil || body.AvatarURL == "" {
		writeEnvelope(w, resp.Error(resp.CodeParamErr, "avatar_url is required"))
		return
	}

	if err := s.users.SetAvatar(r.Context(), session.UserID, body.AvatarURL); err != nil {
		s.logger.Error().Err(err).Msg("failed to update avatar")
		writeEnvelope(w, resp.Error(resp.CodeDBErr, "failed to update avatar"))
		return
	}
	writeEnvelope(w, resp.OK(map[string]interface{}{"avatar_url": body.AvatarURL}))
}

func (s *HTTPServer) handleCheckSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	writeEnvelope(w, resp.OK(map[string]interface{}{
		"user_id": session.UserID,
		"name":    session.Name,
		"mobile":  session.Mobile,
	}))
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.users.Logout(r.Context(), sessionToken(r)); err != nil {
		s.logger.Warn().Err(err).Msg("logout failed")
	}
	writeEnvelope(w, resp.OK(nil))
}
