package apiclient

import (
	"container/list"
	"context"
	"net/http"
	"sync"
)

// Handle identifies a registered interceptor
type Handle uint64

// Request is the outgoing request as seen by request interceptors
type Request struct {
	Method   string
	URL      string
	Path     string
	Header   http.Header
	Body     []byte
	Retries  int
	SkipAuth bool
}

func (r *Request) clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	return &c
}

// merge applies next on top of r: headers are added, other fields replaced
func (r *Request) merge(next *Request) *Request {
	out := next.clone()
	out.Header = r.Header.Clone()
	for k, vs := range next.Header {
		out.Header[k] = append([]string(nil), vs...)
	}
	return out
}

type (
	RequestInterceptor  func(ctx context.Context, req *Request) (*Request, error)
	ResponseInterceptor func(ctx context.Context, resp *Response) (*Response, error)
	ErrorInterceptor    func(ctx context.Context, err error) error
)

type registry[F any] struct {
	mu    sync.RWMutex
	next  Handle
	order *list.List
	index map[Handle]*list.Element
}

type entry[F any] struct {
	handle Handle
	fn     F
}

func (r *registry[F]) add(fn F) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.order == nil {
		r.order = list.New()
		r.index = make(map[Handle]*list.Element)
	}
	r.next++
	h := r.next
	r.index[h] = r.order.PushBack(entry[F]{handle: h, fn: fn})
	return h
}

func (r *registry[F]) remove(h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.index[h]
	if !ok {
		return false
	}
	r.order.Remove(el)
	delete(r.index, h)
	return true
}

func (r *registry[F]) snapshot() []F {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.order == nil {
		return nil
	}
	fns := make([]F, 0, r.order.Len())
	for el := r.order.Front(); el != nil; el = el.Next() {
		fns = append(fns, el.Value.(entry[F]).fn)
	}
	return fns
}

// Interceptors holds the request, response and error chains. They run in
// registration order.
type Interceptors struct {
	request  registry[RequestInterceptor]
	response registry[ResponseInterceptor]
	errors   registry[ErrorInterceptor]
}

func (i *Interceptors) AddRequest(fn RequestInterceptor) Handle   { return i.request.add(fn) }
func (i *Interceptors) AddResponse(fn ResponseInterceptor) Handle { return i.response.add(fn) }
func (i *Interceptors) AddError(fn ErrorInterceptor) Handle       { return i.errors.add(fn) }

func (i *Interceptors) RemoveRequest(h Handle) bool  { return i.request.remove(h) }
func (i *Interceptors) RemoveResponse(h Handle) bool { return i.response.remove(h) }
func (i *Interceptors) RemoveError(h Handle) bool    { return i.errors.remove(h) }

func (i *Interceptors) runRequest(ctx context.Context, req *Request) (*Request, error) {
	for _, fn := range i.request.snapshot() {
		next, err := fn(ctx, req.clone())
		if err != nil {
			return nil, err
		}
		if next != nil {
			req = req.merge(next)
		}
	}
	return req, nil
}

func (i *Interceptors) runResponse(ctx context.Context, resp *Response) (*Response, error) {
	for _, fn := range i.response.snapshot() {
		next, err := fn(ctx, resp)
		if err != nil {
			return nil, err
		}
		if next != nil {
			resp = next
		}
	}
	return resp, nil
}

func (i *Interceptors) runError(ctx context.Context, err error) error {
	for _, fn := range i.errors.snapshot() {
		if next := fn(ctx, err); next != nil {
			err = next
		}
	}
	return err
}
