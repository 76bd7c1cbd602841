// internal/clients/catalog_client.go
package clients

import (
	"context"
	"fmt"
	"net/http"

	"librarydesk/internal/catalog"
)

type bookRequest struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Genre       string `json:"genre"`
	ISBN        string `json:"isbn"`
	TotalCopies int    `json:"total_copies"`
}

func newBookRequest(d catalog.Draft) bookRequest {
	return bookRequest{Title: d.Title, Author: d.Author, Genre: d.Genre, ISBN: d.ISBN, TotalCopies: d.TotalCopies}
}

func (c *Client) CreateBook(ctx context.Context, d catalog.Draft) (int64, error) {
	var resp struct {
		BookID int64 `json:"bookId"`
	}
	if err := c.do(ctx, http.MethodPost, "/books", newBookRequest(d), &resp); err != nil {
		return 0, err
	}
	return resp.BookID, nil
}

func (c *Client) GetBook(ctx context.Context, id int64) (*catalog.Book, error) {
	var book catalog.Book
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/books/%d", id), nil, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *Client) UpdateBook(ctx context.Context, id int64, d catalog.Draft) error {
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/books/%d", id), newBookRequest(d), nil)
}

func (c *Client) DeleteBook(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/books/%d", id), nil, nil)
}

func (c *Client) Borrow(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/books/%d/borrow", id), nil, nil)
}

func (c *Client) Return(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/books/%d/return", id), nil, nil)
}
