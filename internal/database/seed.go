package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"plume/internal/models"
	"plume/internal/slug"
	"plume/internal/treepath"
)

// seedCategory is one node of the sample tree inserted by Seed.
type seedCategory struct {
	name     string
	icon     string
	aliases  string
	children []seedCategory
}

var sampleTree = []seedCategory{
	{
		name: "Technology", icon: "heroicons-cpu-chip-outline", aliases: "Tech, IT, Computing",
		children: []seedCategory{
			{name: "Artificial Intelligence", icon: "heroicons-beaker-outline", aliases: "AI, Machine Learning, ML"},
			{name: "Web Development", icon: "heroicons-code-bracket-outline", aliases: "Frontend, Backend, Full Stack"},
			{name: "Data Science", icon: "heroicons-chart-bar-outline", aliases: "Analytics, Big Data, Statistics"},
			{name: "Cybersecurity", icon: "heroicons-shield-check-outline", aliases: "InfoSec, Security, Privacy"},
		},
	},
	{
		name: "Business", icon: "heroicons-building-office-outline", aliases: "Finance, Marketing, Strategy",
		children: []seedCategory{
			{name: "Digital Marketing", icon: "heroicons-megaphone-outline", aliases: "SEO, SEM, Social Media"},
			{name: "Financial Planning", icon: "heroicons-currency-dollar-outline", aliases: "Budgeting, Investment, Retirement"},
			{name: "Entrepreneurship", icon: "heroicons-rocket-launch-outline", aliases: "Startups, Innovation, Ventures"},
		},
	},
	{
		name: "Science", icon: "heroicons-beaker-outline", aliases: "Research, Academia, Discovery",
		children: []seedCategory{
			{name: "Physics", icon: "heroicons-light-bulb-outline", aliases: "Quantum, Mechanics, Theory"},
			{name: "Biology", icon: "heroicons-heart-outline", aliases: "Life Sciences, Genetics, Ecology"},
			{name: "Chemistry", icon: "heroicons-beaker-outline", aliases: "Lab, Organic, Materials"},
		},
	},
}

// seedGroup is one classifier group with its classifiers.
type seedGroup struct {
	gtype         models.GroupType
	name          string
	maxSelections int
	classifiers   []string
}

var sampleGroups = []seedGroup{
	{
		gtype: models.GroupTypeSubject, name: "Content Topics",
		classifiers: []string{
			"Software Development", "Machine Learning", "Cybersecurity",
			"Cloud Computing", "DevOps", "Blockchain",
		},
	},
	{
		gtype: models.GroupTypeSubject, name: "Industry Sectors",
		classifiers: []string{
			"Healthcare", "Finance", "Education", "Manufacturing", "Energy",
		},
	},
	{
		gtype: models.GroupTypeAttribute, name: "Content Difficulty", maxSelections: 1,
		classifiers: []string{"Beginner", "Intermediate", "Advanced", "Expert"},
	},
	{
		gtype: models.GroupTypeAttribute, name: "Content Format", maxSelections: 1,
		classifiers: []string{"Article", "Video", "Course", "Tool", "Dataset"},
	},
	{
		gtype: models.GroupTypeAttribute, name: "Target Audience", maxSelections: 3,
		classifiers: []string{"Student", "Professional", "Researcher", "General Public"},
	},
}

// Seed populates the database with a sample taxonomy for development:
// a hidden root, three category branches, and five classifier groups.
// It is a no-op when any category already exists.
func Seed(db *sql.DB, locale string) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM categories").Scan(&count); err != nil {
		return fmt.Errorf("seed check categories: %w", err)
	}
	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := seedCategories(tx, locale); err != nil {
		return err
	}
	if err := seedClassifiers(tx, locale); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded with sample taxonomy", "locale", locale)
	return nil
}

// seedCategories inserts the hidden root and the sample tree beneath it.
// Paths and numchild values are computed directly since the whole tree is
// known up front; runtime inserts go through the category store instead.
func seedCategories(tx *sql.Tx, locale string) error {
	rootPath, err := treepath.ChildPath("", 0)
	if err != nil {
		return err
	}

	insert := func(name, s, icon, aliases string, live bool, path string, depth, numchild, orderIndex int) error {
		_, err := tx.Exec(`
			INSERT INTO categories (name, slug, icon, aliases, live, order_index, path, depth, numchild, locale)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, name, s, icon, aliases, live, orderIndex, path, depth, numchild, locale)
		if err != nil {
			return fmt.Errorf("seed insert category %q: %w", name, err)
		}
		return nil
	}

	err = insert(models.RootCategoryName, "hidden-root", "",
		"System root category - do not modify", false, rootPath, 1, len(sampleTree), 0)
	if err != nil {
		return err
	}

	for i, branch := range sampleTree {
		branchPath, err := treepath.ChildPath(rootPath, i)
		if err != nil {
			return err
		}
		err = insert(branch.name, slug.Generate(branch.name), branch.icon, branch.aliases,
			true, branchPath, 2, len(branch.children), i)
		if err != nil {
			return err
		}
		for j, child := range branch.children {
			childPath, err := treepath.ChildPath(branchPath, j)
			if err != nil {
				return err
			}
			err = insert(child.name, slug.Generate(child.name), child.icon, child.aliases,
				true, childPath, 3, 0, j)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// seedClassifiers inserts the sample classifier groups and their members.
func seedClassifiers(tx *sql.Tx, locale string) error {
	for _, g := range sampleGroups {
		var groupID string
		err := tx.QueryRow(`
			INSERT INTO classifier_groups (type, name, slug, max_selections, locale)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, string(g.gtype), g.name, slug.Generate(g.name), g.maxSelections, locale).Scan(&groupID)
		if err != nil {
			return fmt.Errorf("seed insert group %q: %w", g.name, err)
		}

		for i, name := range g.classifiers {
			_, err := tx.Exec(`
				INSERT INTO classifiers (group_id, name, slug, sort_order, locale)
				VALUES ($1, $2, $3, $4, $5)
			`, groupID, name, slug.Generate(name), i+1, locale)
			if err != nil {
				return fmt.Errorf("seed insert classifier %q: %w", name, err)
			}
		}
	}
	return nil
}
