package catalog

import (
	"fmt"
	"os"
	"path/filepath"

	"sixpath-store-go/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type productEntry struct {
	ID          int64  `yaml:"id"`
	Name        string `yaml:"name"`
	TokenAmount int64  `yaml:"token_amount"`
	PriceSOL    string `yaml:"price_sol"`
}

type productsFile struct {
	Products []productEntry `yaml:"products"`
}

// Catalog holds the fixed-price token packages offered by the store.
type Catalog struct {
	products []models.Product
	byID     map[int64]models.Product
}

// Load reads and validates the product catalog from a yaml file.
func Load(productsPath string) (*Catalog, error) {
	var path string
	if filepath.IsAbs(productsPath) {
		path = productsPath
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		path = filepath.Join(wd, productsPath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", productsPath, err)
	}

	var file productsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", productsPath, err)
	}

	if len(file.Products) == 0 {
		return nil, fmt.Errorf("no products defined in %s", productsPath)
	}

	catalog := &Catalog{byID: make(map[int64]models.Product, len(file.Products))}
	for i, entry := range file.Products {
		if entry.Name == "" {
			return nil, fmt.Errorf("product at index %d missing name", i)
		}
		if entry.TokenAmount <= 0 {
			return nil, fmt.Errorf("product %q has non-positive token amount %d", entry.Name, entry.TokenAmount)
		}
		price, err := decimal.NewFromString(entry.PriceSOL)
		if err != nil {
			return nil, fmt.Errorf("product %q has invalid price %q: %w", entry.Name, entry.PriceSOL, err)
		}
		if price.LessThanOrEqual(decimal.Zero) {
			return nil, fmt.Errorf("product %q has non-positive price %s", entry.Name, price.String())
		}
		if _, exists := catalog.byID[entry.ID]; exists {
			return nil, fmt.Errorf("duplicate product id %d", entry.ID)
		}

		product := models.Product{
			ID:          entry.ID,
			Name:        entry.Name,
			TokenAmount: entry.TokenAmount,
			PriceSOL:    price,
		}
		catalog.products = append(catalog.products, product)
		catalog.byID[entry.ID] = product
	}

	return catalog, nil
}

// GetProductByID returns the product with the given id, if present.
func (c *Catalog) GetProductByID(id int64) (models.Product, bool) {
	product, ok := c.byID[id]
	return product, ok
}

// Products returns all catalog entries in file order.
func (c *Catalog) Products() []models.Product {
	return c.products
}
