package resp

import "encoding/json"

// Коды ответов API. Строковые значения исторические, менять нельзя:
// клиенты сравнивают их как строки.
const (
	CodeOK         = "0"
	CodeDBErr      = "4001"
	CodeNoData     = "4002"
	CodeDataExist  = "4003"
	CodeDataErr    = "4004"
	CodeSessionErr = "4101"
	CodeLoginErr   = "4102"
	CodeParamErr   = "4103"
	CodeReqErr     = "4201"
	CodeThirdErr   = "4301"
	CodeServerErr  = "4500"
)

// Envelope единый конверт ответа API.
type Envelope struct {
	Errno  string      `json:"errno"`
	Errmsg string      `json:"errmsg"`
	Data   interface{} `json:"data,omitempty"`
}

func OK(data interface{}) Envelope {
	return Envelope{Errno: CodeOK, Errmsg: "OK", Data: data}
}

func Error(code, msg string) Envelope {
	return Envelope{Errno: code, Errmsg: msg}
}

// Render сериализует конверт. Ошибку сериализации здесь считаем
// программной и заменяем ответ на серверную ошибку.
func Render(e Envelope) string {
	data, err := json.Marshal(e)
	if err != nil {
		return `{"errno":"` + CodeServerErr + `","errmsg":"internal error"}`
	}
	return string(data)
}
