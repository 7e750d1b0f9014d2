// Package railquery implements the SeatQueryClient: the request/response
// contract with the carrier's unauthenticated mobile seat-availability
// endpoint, treated as the wire protocol the rest of the control plane
// consumes.
package railquery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/windasol/korail-watch/internal/config"
	"github.com/windasol/korail-watch/internal/httpkit"
)

// BaseURL is the fixed mobile-app endpoint used by the carrier's own
// Android client.
const BaseURL = "https://smart.letskorail.com:443/classes/com.korail.mobile.seatMovie.ScheduleView"

// MobileUserAgent mimics the Android mobile app's HTTP client exactly;
// the endpoint is undocumented and unauthenticated, and in practice
// rejects requests that don't carry it.
const MobileUserAgent = "Dalvik/2.1.0 (Linux; U; Android 5.1.1; Nexus 4 Build/LMY48T)"

// maxPages caps pagination to prevent a misbehaving upstream (or a
// continuation-token loop) from running forever.
const maxPages = 5

var trainTypeCodes = map[TrainClass]string{
	ClassKTX:           "100",
	ClassKTXSancheon:   "100",
	ClassKTXEeum:       "100",
	ClassITXSaemaeul:   "101",
	ClassITXCheongchun: "109",
	ClassMugunghwa:     "102",
	ClassAll:           "109",
}

var seatAttrCodes = map[SeatClass]string{
	SeatGeneral: "015",
	SeatSpecial: "011",
}

// Checker is the interface MonitorAgent depends on, so tests can
// substitute a scripted fake for the real HTTP client.
type Checker interface {
	Check(ctx context.Context, q Query) (CheckResult, error)
}

// Client is the real SeatQueryClient backed by the shared httpkit
// client. It owns the process's one connection pool to the carrier's
// endpoint for the session lifetime; Close releases it in teardown.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient builds a Client from the HTTP configuration surface (§6):
// request/connect timeouts and the connection-pool cap. logger may be
// nil, in which case a discarding logger is used.
func NewClient(httpCfg config.HTTPConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	transport := httpkit.NewTransport()
	transport.DialContext = (&net.Dialer{
		Timeout:   httpCfg.ConnectTimeout(),
		KeepAlive: httpkit.DefaultKeepAlive,
	}).DialContext
	transport.MaxIdleConnsPerHost = httpCfg.MaxConnections
	transport.MaxConnsPerHost = httpCfg.MaxConnections

	hc := httpkit.NewClient(
		httpkit.WithTimeout(httpCfg.RequestTimeout()),
		httpkit.WithUserAgent(MobileUserAgent),
		httpkit.WithTransport(transport),
		httpkit.WithRetry(httpCfg.RetryCount, httpCfg.RetryDelay()),
		httpkit.WithLogger(logger),
	)

	return &Client{httpClient: hc, baseURL: BaseURL, logger: logger}
}

// Close releases the client's connection pool. Safe to call once, in
// teardown.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// apiResponse is the top-level JSON envelope. The endpoint serves JSON
// with Content-Type: text/html, so decoding never inspects the header.
type apiResponse struct {
	Result       string          `json:"strResult"`
	MsgCode      string          `json:"h_msg_cd"`
	MsgText      string          `json:"h_msg_txt"`
	NextPageFlag string          `json:"h_next_pg_flg"`
	NextQueryNo  string          `json:"h_qry_st_no_next"`
	NextTrainNo  string          `json:"h_trn_no_next"`
	TrainInfos   trainInfosField `json:"trn_infos"`
}

type trainInfosField struct {
	TrainInfo json.RawMessage `json:"trn_info"`
}

type rawTrainInfo struct {
	TrainNo     string `json:"h_trn_no"`
	TrainType   string `json:"h_trn_clsf_nm"`
	DepartureTm string `json:"h_dpt_tm"`
	ArrivalTm   string `json:"h_arv_tm"`
	GeneralCode string `json:"h_gen_rsv_cd"`
	GeneralName string `json:"h_gen_rsv_nm"`
	SpecialCode string `json:"h_spe_rsv_cd"`
	SpecialName string `json:"h_spe_rsv_nm"`
}

// trainInfoList coerces the carrier's "object for one, array for many"
// quirk into a normal slice.
func (f trainInfosField) trainInfoList() ([]rawTrainInfo, error) {
	if len(f.TrainInfo) == 0 {
		return nil, nil
	}

	var list []rawTrainInfo
	if err := json.Unmarshal(f.TrainInfo, &list); err == nil {
		return list, nil
	}

	var single rawTrainInfo
	if err := json.Unmarshal(f.TrainInfo, &single); err != nil {
		return nil, err
	}
	return []rawTrainInfo{single}, nil
}

// Check performs one complete availability query, following pagination
// up to maxPages and merging train lists. It implements Checker.
func (c *Client) Check(ctx context.Context, q Query) (CheckResult, error) {
	start := time.Now()

	var allTrains []TrainInfo
	totalBytes := 0
	continuationQueryNo, continuationTrainNo := "", ""

	for page := 0; page < maxPages; page++ {
		params := c.buildParams(q)
		if page > 0 {
			params.Set("h_qry_st_no", continuationQueryNo)
			params.Set("h_trn_no", continuationTrainNo)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
		if err != nil {
			return CheckResult{}, &TransportError{Err: err}
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return CheckResult{}, &TransportError{Err: err}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body := httpkit.ReadErrorBody(resp.Body, 2048)
			return CheckResult{}, &TransportError{Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return CheckResult{}, &TransportError{Err: err}
		}
		totalBytes += len(body)

		var data apiResponse
		if err := json.Unmarshal(body, &data); err != nil {
			return CheckResult{}, &ProtocolError{Err: err}
		}

		if data.Result == "FAIL" {
			return CheckResult{}, &UpstreamError{Code: data.MsgCode, Message: data.MsgText}
		}

		raw, err := data.TrainInfos.trainInfoList()
		if err != nil {
			return CheckResult{}, &ProtocolError{Err: err}
		}

		for _, item := range raw {
			train, ok, err := toTrainInfo(item, q, c.logger)
			if err != nil {
				return CheckResult{}, &ProtocolError{Err: err}
			}
			if ok {
				allTrains = append(allTrains, train)
			}
		}

		if data.NextPageFlag != "Y" {
			break
		}
		continuationQueryNo = data.NextQueryNo
		continuationTrainNo = data.NextTrainNo
	}

	seatsAvailable := false
	for _, t := range allTrains {
		if t.HasSeats() {
			seatsAvailable = true
			break
		}
	}

	return CheckResult{
		QueryTimestamp:   float64(start.UnixNano()) / 1e9,
		Trains:           allTrains,
		SeatsAvailable:   seatsAvailable,
		RawResponseBytes: totalBytes,
	}, nil
}

// toTrainInfo converts one raw train record, applying the time-window
// filter. Returns ok=false (no error) when the train falls outside the
// requested window.
func toTrainInfo(item rawTrainInfo, q Query, logger *slog.Logger) (TrainInfo, bool, error) {
	dep, err := ParseClock(item.DepartureTm)
	if err != nil {
		return TrainInfo{}, false, err
	}
	arr, err := ParseClock(item.ArrivalTm)
	if err != nil {
		return TrainInfo{}, false, err
	}

	if dep < q.WindowStart || dep > q.WindowEnd {
		return TrainInfo{}, false, nil
	}

	logUnexpectedCode(logger, item.TrainNo, item.GeneralCode)
	logUnexpectedCode(logger, item.TrainNo, item.SpecialCode)

	return TrainInfo{
		TrainNo:         item.TrainNo,
		TrainType:       item.TrainType,
		DepartureTime:   dep,
		ArrivalTime:     arr,
		GeneralSeats:    seatCountFromCode(item.GeneralCode, item.GeneralName),
		SpecialSeats:    seatCountFromCode(item.SpecialCode, item.SpecialName),
		DurationMinutes: dep.DurationTo(arr),
	}, true, nil
}

func logUnexpectedCode(logger *slog.Logger, trainNo, code string) {
	if code != "" && !KnownReservationCode(code) {
		logger.Warn("unexpected reservation code", "train_no", trainNo, "code", code)
	}
}

// buildParams constructs the full request parameter set for one page
// of a query (the pagination tokens, if any, are added by the caller).
func (c *Client) buildParams(q Query) url.Values {
	trainCode, ok := trainTypeCodes[q.TrainClass]
	if !ok {
		trainCode = trainTypeCodes[ClassAll]
	}
	seatCode, ok := seatAttrCodes[q.SeatClass]
	if !ok {
		seatCode = seatAttrCodes[SeatGeneral]
	}

	v := url.Values{}
	v.Set("Device", "AD")
	v.Set("Version", "190617001")
	v.Set("txtGoStart", q.DepartureStation)
	v.Set("txtGoEnd", q.ArrivalStation)
	v.Set("txtGoAbrdDt", q.DepartureDate.Format("20060102"))
	v.Set("txtGoHour", q.WindowStart.HHMMSS())
	v.Set("selGoTrain", trainCode)
	v.Set("txtTrnGpCd", trainCode)
	v.Set("txtSeatAttCd", seatCode)
	v.Set("txtPsgFlg_1", strconv.Itoa(q.PassengerCount))
	v.Set("txtPsgFlg_2", "0")
	v.Set("txtPsgFlg_3", "0")
	v.Set("txtPsgFlg_4", "0")
	v.Set("txtPsgFlg_5", "0")
	v.Set("txtCardPsgCnt", "0")
	v.Set("txtTotPsgCnt", strconv.Itoa(q.PassengerCount))
	v.Set("txtSeatAttCd_2", "000")
	v.Set("txtSeatAttCd_3", "000")
	v.Set("txtSeatAttCd_4", "015")
	v.Set("radJobId", "1")
	v.Set("txtMenuId", "11")
	v.Set("txtGdNo", "")
	v.Set("txtJobDv", "")
	return v
}
