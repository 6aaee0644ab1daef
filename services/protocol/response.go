package protocol

import "net/http"

const (
	ContentJSON = "application/json"
	ContentHTML = "text/html"
)

// Response is what the transport writes back verbatim.
type Response struct {
	Status      int
	ContentType string
	Location    string
	Body        []byte
}

func JSON(body []byte) Response {
	return Response{Status: http.StatusOK, ContentType: ContentJSON, Body: body}
}

func HTML(page []byte) Response {
	return Response{Status: http.StatusOK, ContentType: ContentHTML, Body: page}
}

// Redirect is the reply to a mutation: see other, back to the page.
func Redirect() Response {
	return Response{Status: http.StatusSeeOther, Location: PathRoot}
}

func NotFound() Response {
	return Response{Status: http.StatusNotFound}
}

// Failure is only used when an encoder rejects its buffer, which the fixed
// capacities rule out.
func Failure() Response {
	return Response{Status: http.StatusInternalServerError}
}
