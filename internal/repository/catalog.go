package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/lib/pq"
)

func (r *Repository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, description, image_url, created_at
		 FROM products ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	byID := make(map[string]*domain.Product)
	for rows.Next() {
		p := &domain.Product{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		p.Variants = []domain.ProductVariant{}
		products = append(products, p)
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	if len(products) == 0 {
		return products, nil
	}

	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	vrows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, name, price, stock
		 FROM product_variants WHERE product_id = ANY($1) ORDER BY product_id, name, id`,
		pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer vrows.Close()

	for vrows.Next() {
		var v domain.ProductVariant
		if err := vrows.Scan(&v.ID, &v.ProductID, &v.Name, &v.Price, &v.Stock); err != nil {
			return nil, fmt.Errorf("scan variant row: %w", err)
		}
		if p, ok := byID[v.ProductID]; ok {
			p.Variants = append(p.Variants, v)
		}
	}
	if err := vrows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

// SaveProduct upserts p and its variants. Variants of p that are not in
// p.Variants are removed. Ids left empty are generated and written back.
func (r *Repository) SaveProduct(ctx context.Context, p *domain.Product) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`INSERT INTO products (id, name, description, image_url)
			 VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE
			 SET name = EXCLUDED.name, description = EXCLUDED.description, image_url = EXCLUDED.image_url
			 RETURNING id, created_at`,
			p.ID, p.Name, p.Description, p.ImageURL,
		).Scan(&p.ID, &p.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert product: %w", err)
		}

		keep := make([]string, 0, len(p.Variants))
		for i := range p.Variants {
			v := &p.Variants[i]
			v.ProductID = p.ID
			err := tx.QueryRowContext(ctx,
				`INSERT INTO product_variants (id, product_id, name, price, stock)
				 VALUES (COALESCE(NULLIF($1, ''), gen_random_uuid()::text), $2, $3, $4, $5)
				 ON CONFLICT (id) DO UPDATE
				 SET name = EXCLUDED.name, price = EXCLUDED.price, stock = EXCLUDED.stock
				 WHERE product_variants.product_id = EXCLUDED.product_id
				 RETURNING id`,
				v.ID, v.ProductID, v.Name, v.Price, v.Stock,
			).Scan(&v.ID)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("variant %s belongs to another product: %w", v.ID, ErrVariantNotFound)
			}
			if err != nil {
				return fmt.Errorf("upsert variant: %w", err)
			}
			keep = append(keep, v.ID)
		}

		_, err = tx.ExecContext(ctx,
			`DELETE FROM product_variants WHERE product_id = $1 AND NOT (id = ANY($2))`,
			p.ID, pq.Array(keep))
		if err != nil {
			return fmt.Errorf("prune variants: %w", err)
		}
		return nil
	})
}

func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repository) GetCompanyInfo(ctx context.Context) (*domain.CompanyInfo, error) {
	var info domain.CompanyInfo
	err := r.db.QueryRowContext(ctx,
		`SELECT name, address, phone, email FROM company_info WHERE id = 1`,
	).Scan(&info.Name, &info.Address, &info.Phone, &info.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCompanyInfoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query company info: %w", err)
	}
	return &info, nil
}

func (r *Repository) UpdateCompanyInfo(ctx context.Context, info *domain.CompanyInfo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO company_info (id, name, address, phone, email)
		 VALUES (1, $1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET name = EXCLUDED.name, address = EXCLUDED.address, phone = EXCLUDED.phone, email = EXCLUDED.email`,
		info.Name, info.Address, info.Phone, info.Email)
	if err != nil {
		return fmt.Errorf("upsert company info: %w", err)
	}
	return nil
}
