package demo

type Response struct {
	Code int
}

func HandleA() int {
	r := &Response{Code: 200}
	return use(r)
}

func HandleB() int {
	r := &Response{Code: 404}
	return use(r, r.Code)
}

func use(r *Response, extra ...int) int {
	return r.Code + len(extra)
}
