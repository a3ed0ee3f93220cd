// Command seed fills an empty catalog database with sample products. It is
// an operational convenience, kept outside the server so startup never
// depends on seeded data.
package main

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"catalog/internal/models"
	"catalog/internal/repositories"
)

var brands = []string{
	"Apple", "Samsung", "Nike", "Adidas", "Sony",
	"LG", "Xiaomi", "Huawei", "Canon", "Nikon",
}

var kinds = []string{
	"Phone", "Laptop", "Sneakers", "Headphones", "Camera",
	"Monitor", "Tablet", "Watch", "Speaker", "Keyboard",
}

func main() {
	viper.SetDefault("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=catalog port=5432 sslmode=disable")
	viper.AutomaticEnv()

	db, err := gorm.Open(postgres.Open(viper.GetString("DATABASE_DSN")), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	var count int64
	if err := db.Model(&models.Product{}).Count(&count).Error; err != nil {
		log.Fatalf("Failed to count products: %v", err)
	}
	if count > 0 {
		log.Printf("Database already holds %d products, skipping seed", count)
		return
	}

	repo := repositories.NewGORMProductRepository(db)
	for _, product := range generateProducts(20) {
		if err := repo.Create(&product); err != nil {
			log.Fatalf("Failed to seed product %s: %v", product.Name, err)
		}
		log.Printf("Seeded product %s (article %s)", product.Name, product.Article)
	}
	log.Println("Seeding complete")
}

func generateProducts(count int) []models.Product {
	products := make([]models.Product, 0, count)
	for i := 1; i <= count; i++ {
		price := 500 + rand.Float64()*4500
		price = float64(int(price*100)) / 100

		var discount *float64
		if rand.Intn(2) == 0 {
			// Keep the discount strictly below the price; the service
			// rejects discounts at or above it.
			d := price * (0.7 + rand.Float64()*0.25)
			d = float64(int(d*100)) / 100
			discount = &d
		}

		products = append(products, models.Product{
			Name:          fmt.Sprintf("%s %s", kinds[i%len(kinds)], brands[i%len(brands)]),
			Description:   fmt.Sprintf("Sample catalog entry %d for demos and local development.", i),
			Price:         price,
			DiscountPrice: discount,
			Article:       fmt.Sprintf("ART-%d", 10000+i),
			IsActive:      true,
		})
	}
	return products
}
