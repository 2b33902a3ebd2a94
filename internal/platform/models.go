package platform

// Wire models of the platform control API.

const contentType = "application/json"

const (
	connectUserUrl   = "/v1/users/%s/connect"
	disconnectUrl    = "/v1/users/%s/disconnect"
	messagesUrl      = "/v1/channels/%s/messages"
	channelsUrl      = "/v1/channels"
	leaveChannelUrl  = "/v1/channels/%s/members/%s"
	videoClientsUrl  = "/v1/video/clients"
	disposeClientUrl = "/v1/video/clients/%s"
	callsUrl         = "/v1/video/calls"
	endCallUrl       = "/v1/video/calls/%s"
	statusUrl        = "/status"
)

type connectUserResponse struct {
	SessionId string `json:"sessionId"`
}

type createChannelRequest struct {
	ChannelId string   `json:"channelId"`
	Members   []string `json:"members"`
}

type createChannelResponse struct {
	ChannelId string   `json:"channelId"`
	Members   []string `json:"members"`
}

type sendMessageRequest struct {
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

type createVideoClientRequest struct {
	Subject string `json:"subject"`
}

type createVideoClientResponse struct {
	ClientId string `json:"clientId"`
}

type createCallRequest struct {
	ClientId  string `json:"clientId"`
	ChannelId string `json:"channelId"`
}

type createCallResponse struct {
	CallId string `json:"callId"`
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
